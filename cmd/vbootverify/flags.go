package main

import (
	"flag"
	"fmt"
)

// config holds the resolved command-line configuration for one
// vbootverify invocation.
type config struct {
	KeyBlockPath         string
	RootKeyPath          string
	FirmwarePreamblePath string
	KernelPreamblePath   string
	Verbosity            int
}

// newFlagSet builds the flag.FlagSet for vbootverify with
// flag.ContinueOnError so parseFlags can report usage errors to the
// caller instead of calling os.Exit directly, keeping run testable.
func newFlagSet(name string) (*flag.FlagSet, *config) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg := &config{}
	fs.StringVar(&cfg.KeyBlockPath, "keyblock", "", "path to a key block file to verify (required)")
	fs.StringVar(&cfg.RootKeyPath, "root-key", "", "path to a standalone VbPublicKey root-of-trust file; omit to verify the key block's embedded checksum instead")
	fs.StringVar(&cfg.FirmwarePreamblePath, "firmware-preamble", "", "path to a firmware preamble file to verify against the key block's data key")
	fs.StringVar(&cfg.KernelPreamblePath, "kernel-preamble", "", "path to a kernel preamble file to verify against the key block's data key")
	fs.IntVar(&cfg.Verbosity, "verbosity", 1, "log verbosity: 0=error, 1=info, 2=debug")
	return fs, cfg
}

// parseFlags parses args into a config. The returned bool reports whether
// the caller should exit immediately (on -h/--help or a parse error); code
// is the process exit code to use in that case.
func parseFlags(args []string) (*config, bool, int) {
	fs, cfg := newFlagSet("vbootverify")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: vbootverify -keyblock FILE [-root-key FILE] [-firmware-preamble FILE] [-kernel-preamble FILE] [-verbosity N]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return cfg, true, 0
		}
		return cfg, true, 2
	}
	if cfg.KeyBlockPath == "" {
		fmt.Fprintln(fs.Output(), "vbootverify: -keyblock is required")
		fs.Usage()
		return cfg, true, 2
	}
	return cfg, false, 0
}
