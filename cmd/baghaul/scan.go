// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/fieldlog/baghaul/cmd/baghaul/cli"
	"github.com/fieldlog/baghaul/lib/bandwidth"
	"github.com/fieldlog/baghaul/lib/clock"
	"github.com/fieldlog/baghaul/lib/config"
	"github.com/fieldlog/baghaul/lib/marker"
	"github.com/fieldlog/baghaul/lib/rosbag"
)

func scanCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "scan",
		Summary: "list discovered bag files without transferring anything",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
			flags.StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file (required)")
			return flags
		},
		Run: func(args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runScan(cfg, os.Stdout)
		},
	}
}

func runScan(cfg *config.Config, out io.Writer) error {
	dirs, err := rosbag.ScanTree(cfg.LocalRosbagsDirectory, cfg.FilePattern)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Fprintf(out, "no files matching %q under %s\n", cfg.FilePattern, cfg.LocalRosbagsDirectory)
		return nil
	}

	clk := clock.Real()
	estimate := bandwidth.Assume(cfg.DefaultBandwidthMbps, clk.Now())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tETA\tSTATUS")
	var totalBytes int64
	var totalFiles int
	for _, dir := range dirs {
		status := "pending"
		if marker.IsComplete(marker.PathFor(dir)) {
			status = "complete"
		}
		files, err := rosbag.Scan(dir, cfg.FilePattern, clk)
		if err != nil {
			return err
		}
		for _, file := range files {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", file.Path, file.Size,
				bandwidth.FormatDuration(estimate.ETA(file.Size)), status)
			totalBytes += file.Size
			totalFiles++
		}
	}
	tw.Flush()

	fmt.Fprintf(out, "\n%d files, %d bytes total\n", totalFiles, totalBytes)
	fmt.Fprintf(out, "estimated transfer time at %s: %s\n",
		bandwidth.FormatThroughput(estimate.BytesPerSecond),
		bandwidth.FormatDuration(estimate.ETA(totalBytes)))
	return nil
}
