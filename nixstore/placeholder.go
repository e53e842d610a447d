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
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
)

// A Placeholder is an opaque stand-in for a store path that is not known
// until after a derivation has been built.  Nix substitutes the rendered
// value with the real output path at build time, so the hashing scheme here
// must match Nix's byte for byte.
type Placeholder struct {
	hash []byte
}

// Render returns the placeholder as it appears inside derivation fields: a
// slash followed by the Nix base32 encoding of the hash.
func (p Placeholder) Render() string {
	return "/" + EncodeBase32(p.hash)
}

// Equal reports whether two placeholders stand for the same output.
func (p Placeholder) Equal(o Placeholder) bool {
	return bytes.Equal(p.hash, o.hash)
}

// StandardOutput returns the placeholder a derivation uses to refer to its
// own output named outputName.
func StandardOutput(outputName string) Placeholder {
	sum := sha256.Sum256([]byte("nix-output:" + outputName))
	return Placeholder{hash: sum[:]}
}

// CAOutput returns the placeholder for an output of a content-addressed
// derivation, referenced by consumers before the derivation is built.
func CAOutput(drvPath StorePath, outputName string) Placeholder {
	drvName := strings.TrimSuffix(drvPath.Name(), ".drv")
	clearText := fmt.Sprintf("nix-upstream-output:%s:%s",
		drvPath.HashPart(), OutputPathName(drvName, outputName))
	sum := sha256.Sum256([]byte(clearText))
	return Placeholder{hash: sum[:]}
}

// DynamicOutput returns the placeholder for an output of a derivation that
// is itself the output of another derivation.  parent is the placeholder of
// the producing derivation's output.
func DynamicOutput(parent Placeholder, outputName string) Placeholder {
	compressed := compressHash(parent.hash, 20)
	clearText := fmt.Sprintf("nix-computed-output:%s:%s",
		EncodeBase32(compressed), outputName)
	sum := sha256.Sum256([]byte(clearText))
	return Placeholder{hash: sum[:]}
}

// DynamicOutputChain folds DynamicOutput over a chain of output names, for
// derivation-producing-derivation relationships nested to arbitrary depth.
// The first name is the outermost derivation's output.
func DynamicOutputChain(parent Placeholder, outputNames []string) Placeholder {
	p := parent
	for _, name := range outputNames {
		p = DynamicOutput(p, name)
	}
	return p
}

// ParsePlaceholder decodes a rendered placeholder back into a Placeholder.
func ParsePlaceholder(s string) (Placeholder, error) {
	hash, err := DecodeBase32(strings.TrimPrefix(s, "/"))
	if err != nil {
		return Placeholder{}, fmt.Errorf("not a valid placeholder %q: %w", s, err)
	}
	return Placeholder{hash: hash}, nil
}

// OutputPathName formats the store-path name of one derivation output.  The
// default output "out" uses the derivation name unchanged.
func OutputPathName(drvName, outputName string) string {
	if outputName == "out" {
		return drvName
	}
	return drvName + "-" + outputName
}

// compressHash XOR-folds a hash down to newSize bytes, matching Nix's
// compressHash.
func compressHash(hash []byte, newSize int) []byte {
	out := make([]byte, newSize)
	for i, b := range hash {
		out[i%newSize] ^= b
	}
	return out
}
