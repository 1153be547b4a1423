// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Baghaul moves recorded robot data from field machines to an upload
// host. It discovers rosbag files under a configured directory,
// compresses them with a bounded worker pool, transfers the artifacts
// over SSH, verifies the remote copies, and optionally reclaims the
// local disk once the remote side is confirmed.
//
// Everything is driven by a single YAML configuration file; see the
// config package for the key reference.
package main

import (
	"fmt"
	"os"

	"github.com/fieldlog/baghaul/cmd/baghaul/cli"
	"github.com/fieldlog/baghaul/lib/version"
)

func main() {
	root := &cli.Command{
		Name:        "baghaul",
		Summary:     "staged rosbag transfer from robots to upload hosts",
		Description: "Baghaul compresses, transfers, and verifies recorded rosbag files.",
		Subcommands: []*cli.Command{
			runCommand(),
			scanCommand(),
			probeCommand(),
			versionCommand(),
		},
	}
	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Printf("baghaul %s\n", version.Full())
			return nil
		},
	}
}
