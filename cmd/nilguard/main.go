//  Copyright (c) 2025 Uber Technologies, Inc.
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

// nilguard is a command-line driver for the runtime null-check synthesis. It compiles a module
// description, reports diagnostics and optionally writes the output image, prints the rewritten
// methods or runs one of them.
//
//	nilguard [flags] module.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/VictoriaMetrics/metrics"
	"go.uber.org/nilguard"
	"go.uber.org/nilguard/config"
	"go.uber.org/nilguard/emit"
	"go.uber.org/nilguard/interp"
	"go.uber.org/nilguard/util/tokenhelper"
)

type driver struct {
	opts       config.Options
	configPath string
	outPath    string
	print      bool
	run        string
	pretty     bool
	dumpStats  bool
}

// options returns the compilation options: those of the configuration file if one is given,
// overridden by the option flags set on the command line.
func (d *driver) options(fs *flag.FlagSet) (config.Options, error) {
	if d.configPath == "" {
		return d.opts, nil
	}
	f, err := os.Open(d.configPath)
	if err != nil {
		return config.Options{}, fmt.Errorf("open configuration: %w", err)
	}
	defer f.Close()
	opts, err := config.Load(f)
	if err != nil {
		return config.Options{}, fmt.Errorf("%s: %w", d.configPath, err)
	}

	overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
	opts.RegisterFlags(overrides)
	fs.Visit(func(fl *flag.Flag) {
		if overrides.Lookup(fl.Name) != nil && err == nil {
			err = overrides.Set(fl.Name, fl.Value.String())
		}
	})
	return opts, err
}

func (d *driver) main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nilguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: nilguard [flags] module.yaml\n")
		fs.PrintDefaults()
	}
	d.opts = config.DefaultOptions()
	d.opts.RegisterFlags(fs)
	fs.StringVar(&d.configPath, "config", "", "Path of a YAML file with the compilation options. Option flags take precedence over it.")
	fs.StringVar(&d.outPath, "o", "", "Path to write the output image to.")
	fs.BoolVar(&d.print, "print", false, "Print the rewritten methods and the helper type.")
	fs.StringVar(&d.run, "run", "", "Run the parameterless static method Type.Method of the compiled module.")
	fs.BoolVar(&d.pretty, "pretty-print", false, "Colorize diagnostics.")
	fs.BoolVar(&d.dumpStats, "metrics", false, "Write the counters of the run in Prometheus text format to stdout.")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	opts, err := d.options(fs)
	if err != nil {
		fmt.Fprintf(stderr, "nilguard: %v\n", err)
		return 2
	}
	out, err := nilguard.Run(ctx, tokenhelper.RelToCwd(fs.Arg(0)), opts)
	if err != nil {
		fmt.Fprintf(stderr, "nilguard: %v\n", err)
		return 1
	}
	if d.dumpStats {
		defer metrics.WritePrometheus(stdout, false)
	}

	res := out.Result
	for _, diag := range res.Diagnostics {
		if d.pretty {
			fmt.Fprintln(stderr, nilguard.PrettyPrint(diag, res.Fset))
		} else {
			fmt.Fprintln(stderr, diag.Format(res.Fset))
		}
	}
	if d.print {
		if err := res.Print(stdout); err != nil {
			fmt.Fprintf(stderr, "nilguard: %v\n", err)
			return 1
		}
	}
	if res.HasErrors() {
		return 1
	}
	if d.outPath != "" {
		if err := emit.WriteFile(d.outPath, res.Image); err != nil {
			fmt.Fprintf(stderr, "nilguard: %v\n", err)
			return 1
		}
	}
	if d.run != "" {
		v, err := out.Invoke(d.run, stdout)
		if err != nil {
			fmt.Fprintf(stderr, "nilguard: %s: %v\n", d.run, err)
			return 1
		}
		if v != nil {
			fmt.Fprintln(stdout, interp.Format(v))
		}
	}
	return 0
}

func main() {
	d := &driver{}
	os.Exit(d.main(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
