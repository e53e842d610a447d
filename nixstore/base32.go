// Copyright 2025 The ninja2nix Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nixstore

import (
	"fmt"
	"strings"
)

// Nix's base32 alphabet omits e, o, u and t to avoid accidental words.
const base32Alphabet = "0123456789abcdfghijklmnpqrsvwxyz"

// EncodeBase32 encodes bytes in Nix's base32 variant, which emits the
// least-significant 5-bit group last.  It is not interchangeable with
// RFC 4648 base32.
func EncodeBase32(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	length := (len(data)*8-1)/5 + 1

	var sb strings.Builder
	sb.Grow(length)
	for n := length - 1; n >= 0; n-- {
		b := n * 5
		i := b / 8
		j := uint(b % 8)
		c := data[i] >> j
		if i+1 < len(data) {
			c |= data[i+1] << (8 - j)
		}
		sb.WriteByte(base32Alphabet[c&0x1f])
	}

	return sb.String()
}

// DecodeBase32 reverses EncodeBase32.  It fails on characters outside the
// Nix alphabet and on non-zero padding bits.
func DecodeBase32(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}

	out := make([]byte, len(s)*5/8)
	for n := 0; n < len(s); n++ {
		c := s[len(s)-n-1]
		digit := strings.IndexByte(base32Alphabet, c)
		if digit < 0 {
			return nil, fmt.Errorf("invalid base32 character %q at offset %d", c, len(s)-n-1)
		}

		b := n * 5
		i := b / 8
		j := uint(b % 8)
		out[i] |= byte(digit) << j

		borrow := byte(digit) >> (8 - j)
		if i+1 < len(out) {
			out[i+1] |= borrow
		} else if borrow != 0 {
			return nil, fmt.Errorf("invalid base32 string %q: non-zero padding", s)
		}
	}

	return out, nil
}
