// Command vbootverify checks verified-boot key blocks and firmware/kernel
// preambles for structural well-formedness and cryptographic authenticity.
//
// Usage:
//
//	vbootverify -keyblock FILE [-root-key FILE] [-firmware-preamble FILE] [-kernel-preamble FILE] [-verbosity N]
//
// Flags:
//
//	-keyblock           path to a key block file to verify (required)
//	-root-key           path to a standalone VbPublicKey root-of-trust file; omit for hash (inspection) mode
//	-firmware-preamble  path to a firmware preamble file to verify against the key block's data key
//	-kernel-preamble    path to a kernel preamble file to verify against the key block's data key
//	-verbosity          log level 0-2 (default: 1)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/SynaptekResearch/vboot-android/log"
	"github.com/SynaptekResearch/vboot-android/vboot"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning a process exit code. It takes
// CLI arguments (without the program name) so it can be exercised in
// isolation from os.Args/os.Exit.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	log.SetDefault(log.New(verbosityToLevel(cfg.Verbosity)))
	cmdLog := log.Default().Module("vbootverify")

	keyBlockBuf, err := os.ReadFile(cfg.KeyBlockPath)
	if err != nil {
		cmdLog.Error("failed to read key block", "path", cfg.KeyBlockPath, "err", err)
		return 1
	}

	var rootKeyBuf []byte
	if cfg.RootKeyPath != "" {
		rootKeyBuf, err = os.ReadFile(cfg.RootKeyPath)
		if err != nil {
			cmdLog.Error("failed to read root key", "path", cfg.RootKeyPath, "err", err)
			return 1
		}
	}

	block, status := vboot.VerifyKeyBlock(keyBlockBuf, rootKeyBuf)
	if status != vboot.StatusSuccess {
		fmt.Fprintf(os.Stderr, "key block: %s\n", status)
		return 1
	}
	cmdLog.Info("key block verified", "size", block.KeyBlockSize, "keyed", rootKeyBuf != nil)

	if cfg.FirmwarePreamblePath == "" && cfg.KernelPreamblePath == "" {
		fmt.Println("OK")
		return 0
	}

	dataKey, err := block.DataKeyKey()
	if err != nil {
		cmdLog.Error("key block data key unusable", "err", err)
		return 1
	}

	if cfg.FirmwarePreamblePath != "" {
		buf, err := os.ReadFile(cfg.FirmwarePreamblePath)
		if err != nil {
			cmdLog.Error("failed to read firmware preamble", "path", cfg.FirmwarePreamblePath, "err", err)
			return 1
		}
		pre, status := vboot.VerifyFirmwarePreamble(buf, dataKey)
		if status != vboot.StatusSuccess {
			fmt.Fprintf(os.Stderr, "firmware preamble: %s\n", status)
			return 1
		}
		cmdLog.Info("firmware preamble verified", "firmware_version", pre.FirmwareVersion)
	}

	if cfg.KernelPreamblePath != "" {
		buf, err := os.ReadFile(cfg.KernelPreamblePath)
		if err != nil {
			cmdLog.Error("failed to read kernel preamble", "path", cfg.KernelPreamblePath, "err", err)
			return 1
		}
		pre, status := vboot.VerifyKernelPreamble(buf, dataKey)
		if status != vboot.StatusSuccess {
			fmt.Fprintf(os.Stderr, "kernel preamble: %s\n", status)
			return 1
		}
		cmdLog.Info("kernel preamble verified", "kernel_version", pre.KernelVersion)
	}

	fmt.Println("OK")
	return 0
}

func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelError
	case v == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
