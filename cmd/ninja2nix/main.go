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

// ninja2nix translates a Ninja build graph into Nix derivations, one per
// build edge, and realizes the requested target through nix build.  It is
// invocable in place of ninja, so meson-generated builds work unchanged.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nix-community/ninja2nix"
	"github.com/nix-community/ninja2nix/cache"
	"github.com/nix-community/ninja2nix/nixstore"
	"github.com/nix-community/ninja2nix/nixtool"
)

// ninjaVersion is what --version reports.  Meson probes the backend version
// and requires at least 1.8.2.
const ninjaVersion = "1.8.2"

type options struct {
	dir         string
	manifest    string
	tool        string
	jobs        int
	loadAverage float64
	verbose     bool
	version     bool

	storeDir    string
	nixTool     string
	mode        string
	extraInputs []string
	cachePath   string
	timeout     time.Duration

	// Set when running as the builder of an outer derivation: the
	// translated derivation is copied to $out instead of being built.
	outputDerivation bool
}

func main() {
	// A .env next to the manifest can pin NIX_STORE, NIX_TOOL and the
	// extra-inputs stopgap without touching the caller's environment.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ninja2nix:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "ninja2nix [flags] [targets...]",
		Short:         "incremental compilation of Ninja build files via Nix dynamic derivations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.dir, "dir", "C", "", "change to `DIR` before doing anything else")
	flags.StringVarP(&opts.manifest, "file", "f", "build.ninja", "specify input build file")
	flags.StringVarP(&opts.tool, "tool", "t", "", "run a subtool (use '-t list' to list subtools)")
	flags.IntVarP(&opts.jobs, "jobs", "j", 0, "run N jobs in parallel (0 means infinity)")
	flags.Float64VarP(&opts.loadAverage, "load-average", "l", 0, "do not start new jobs if the load average is greater than N")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "show all command lines while building")
	flags.BoolVar(&opts.version, "version", false, "print ninja version")

	flags.StringVar(&opts.storeDir, "store-dir", envOr("NIX_STORE", "/nix/store"), "specify the Nix store directory")
	flags.StringVar(&opts.nixTool, "nix-tool", envOr("NIX_TOOL", "nix"), "specify the Nix tool")
	flags.StringVar(&opts.mode, "mode", "scan", "dependency inference strategy (scan or exec)")
	flags.StringSliceVar(&opts.extraInputs, "extra-inputs", envList("NIX_NINJA_EXTRA_INPUTS"), "extra output:input pairs the manifest does not declare")
	flags.StringVar(&opts.cachePath, "cache", ".ninja2nix.db", "translation cache database (empty disables caching)")
	flags.DurationVar(&opts.timeout, "infer-timeout", 2*time.Minute, "timeout for one execution-based inference")

	flags.BoolVar(&opts.outputDerivation, "output-derivation", os.Getenv("NIX_NINJA_DRV") != "", "copy the target's derivation to $out instead of building it")
	_ = flags.MarkHidden("jobs")
	_ = flags.MarkHidden("load-average")
	_ = flags.MarkHidden("output-derivation")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func run(ctx context.Context, opts *options, targets []string, stdout io.Writer) error {
	if opts.version {
		fmt.Fprintln(stdout, ninjaVersion)
		return nil
	}

	if opts.dir != "" {
		if err := os.Chdir(opts.dir); err != nil {
			return err
		}
	}

	if opts.tool != "" {
		return subtool(ctx, opts, targets, stdout)
	}

	if len(targets) == 0 {
		return fmt.Errorf("no target requested")
	}

	tr, nix, err := translate(ctx, opts, targets)
	if err != nil {
		return err
	}

	df, ok := tr.DerivedFor(targets[0])
	if !ok {
		return fmt.Errorf("no derivation backs target %s", targets[0])
	}

	if opts.outputDerivation {
		return copyDerivationOut(df)
	}
	return buildAndLink(nix, df)
}

// translate loads the manifest, wires the store collaborators and runs the
// pipeline for the requested targets.
func translate(ctx context.Context, opts *options, targets []string) (*ninja2nix.Translator, *nixtool.Tool, error) {
	buildDir, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}

	g, err := ninja2nix.Load(ninja2nix.DirReader(buildDir), opts.manifest)
	if err != nil {
		return nil, nil, err
	}

	nix := nixtool.New(opts.nixTool)
	taskRunner, err := nix.WhichStorePath("ninja2nix-task")
	if err != nil {
		return nil, nil, err
	}
	coreutils, err := nix.WhichStorePath("coreutils")
	if err != nil {
		return nil, nil, err
	}

	cfg := ninja2nix.DefaultConfig()
	cfg.BuildDir = buildDir
	cfg.StoreDir = opts.storeDir
	cfg.TaskRunner = taskRunner
	cfg.Coreutils = coreutils
	cfg.Env = environMap()
	cfg.ExtraInputs = opts.extraInputs
	cfg.StageBuildDir = true
	cfg.Mode = ninja2nix.InferenceMode(opts.mode)
	cfg.Jobs = opts.jobs
	cfg.Timeout = opts.timeout
	cfg.Logger = newLogger(opts.verbose)

	var store ninja2nix.Cache
	if opts.cachePath != "" {
		db, err := cache.Open(opts.cachePath, 0)
		if err != nil {
			cfg.Logger.Warn("cache unavailable, translating from scratch", "path", opts.cachePath, "err", err)
		} else {
			defer db.Close()
			store = db
		}
	}

	tr := ninja2nix.NewTranslator(g, cfg, nix, store)
	if _, err := tr.Translate(ctx, targets); err != nil {
		return nil, nil, err
	}
	return tr, nix, nil
}

// buildAndLink realizes the target's derivation and symlinks the built
// output over the declared path, so the source tree ends up looking the way
// ninja would have left it.
func buildAndLink(nix *nixtool.Tool, df nixstore.DerivedFile) error {
	paths, err := nix.Build(df.Path.String())
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("nix build produced no outputs for %s", df.Path)
	}

	if err := os.MkdirAll(filepath.Dir(df.Source), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(df.Source); err == nil {
		if err := os.Remove(df.Source); err != nil {
			return err
		}
	}
	return os.Symlink(paths[0].String(), df.Source)
}

// copyDerivationOut supports running inside a derivation: the outer build
// expects the translated .drv file at $out, where Nix picks it up as a
// dynamic derivation.
func copyDerivationOut(df nixstore.DerivedFile) error {
	out := os.Getenv("out")
	if out == "" {
		return fmt.Errorf("expected $out to be set")
	}
	data, err := os.ReadFile(df.Path.StorePath().String())
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func subtool(ctx context.Context, opts *options, targets []string, stdout io.Writer) error {
	switch opts.tool {
	case "list":
		fmt.Fprintln(stdout, "ninja2nix subtools:")
		fmt.Fprintln(stdout, "  drv     show Nix derivation generated for a target")
	case "drv":
		if len(targets) == 0 {
			return fmt.Errorf("no target requested")
		}
		tr, nix, err := translate(ctx, opts, targets)
		if err != nil {
			return err
		}
		df, ok := tr.DerivedFor(targets[0])
		if !ok {
			return fmt.Errorf("no derivation backs target %s", targets[0])
		}
		data, err := nix.DerivationShow(df.Path.StorePath())
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(data))
	case "restat", "clean", "cleandead", "compdb":
		// Meson invokes these housekeeping subtools; none of them affect
		// derivation generation, so they are accepted and ignored.
	default:
		return fmt.Errorf("unknown subtool %q, use '-t list' to get a list of available subtools", opts.tool)
	}
	return nil
}

func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	return env
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
