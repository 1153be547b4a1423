// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/fieldlog/baghaul/cmd/baghaul/cli"
	"github.com/fieldlog/baghaul/lib/bandwidth"
)

func probeCommand() *cli.Command {
	var (
		endpoint string
		window   time.Duration
	)
	return &cli.Command{
		Name:    "probe",
		Summary: "measure achievable bandwidth to an endpoint",
		Description: "Probe streams data to a TCP endpoint for a fixed window and reports\n" +
			"the achieved throughput. Point it at the upload host's discard port\n" +
			"or any sink that keeps reading.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("probe", pflag.ContinueOnError)
			flags.StringVarP(&endpoint, "endpoint", "e", "", "host:port to stream to (required)")
			flags.DurationVar(&window, "window", 5*time.Second, "measurement window")
			return flags
		},
		Run: func(args []string) error {
			if endpoint == "" {
				return fmt.Errorf("--endpoint is required")
			}
			prober := bandwidth.DefaultProber()
			prober.Window = window
			estimate, err := prober.Measure(context.Background(), endpoint)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", estimate)
			return nil
		},
	}
}
