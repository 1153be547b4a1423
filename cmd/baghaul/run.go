// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fieldlog/baghaul/cmd/baghaul/cli"
	"github.com/fieldlog/baghaul/lib/bandwidth"
	"github.com/fieldlog/baghaul/lib/clock"
	"github.com/fieldlog/baghaul/lib/compress"
	"github.com/fieldlog/baghaul/lib/config"
	"github.com/fieldlog/baghaul/lib/marker"
	"github.com/fieldlog/baghaul/lib/pipeline"
	"github.com/fieldlog/baghaul/lib/rosbag"
	"github.com/fieldlog/baghaul/lib/transport"
	"github.com/fieldlog/baghaul/lib/version"
)

// stagingDirName is created inside each bag directory to hold
// compressed artifacts awaiting transfer. It never matches the bag
// file pattern, so repeated scans do not pick up artifacts.
const stagingDirName = ".baghaul_staging"

func runCommand() *cli.Command {
	var (
		configPath      string
		logFile         string
		debug           bool
		force           bool
		continueOnError bool
	)
	return &cli.Command{
		Name:    "run",
		Summary: "compress, transfer, and verify recorded bags",
		Description: "Run discovers bag directories under the configured root, compresses\n" +
			"each bag, pushes the artifacts to the upload host over SSH, verifies\n" +
			"the remote copies, and writes a completion marker per directory.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flags.StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file (required)")
			flags.StringVar(&logFile, "log-file", "", "append JSON log records to this file")
			flags.BoolVar(&debug, "debug", false, "enable debug logging")
			flags.BoolVar(&force, "force", false, "re-process directories that already have a completion marker")
			flags.BoolVar(&continueOnError, "continue-on-error", false, "keep going past directories with failed transfers (overrides the config key)")
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
			if continueOnError {
				cfg.ContinueOnError = true
			}
			logger, closeLog, err := buildLogger(logFile, debug)
			if err != nil {
				return err
			}
			defer closeLog()
			return runTransfer(cfg, logger, force)
		},
	}
}

// resolveTarget turns the configured destination into a dialable SSH
// target, either by ssh_config alias or by explicit user and host.
func resolveTarget(cfg *config.Config) (*transport.Target, error) {
	if cfg.CloudSSHAlias != "" {
		return transport.ResolveAlias(cfg.CloudSSHAlias)
	}
	return &transport.Target{User: cfg.CloudUser, Host: cfg.CloudHostname}, nil
}

// measureBandwidth probes the configured endpoint, falling back to
// the assumed figure when no endpoint is configured or the probe
// fails. A failed probe never aborts the run; it only degrades ETA
// accuracy and queue sizing.
func measureBandwidth(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) bandwidth.Estimate {
	if cfg.BandwidthProbeEndpoint != "" {
		estimate, err := bandwidth.DefaultProber().Measure(ctx, cfg.BandwidthProbeEndpoint)
		if err == nil {
			logger.Info("bandwidth probe complete", "estimate", estimate.String())
			return estimate
		}
		if errors.Is(err, bandwidth.ErrProbeUnavailable) {
			logger.Warn("bandwidth probe endpoint unavailable, assuming default",
				"endpoint", cfg.BandwidthProbeEndpoint, "defaultMbps", cfg.DefaultBandwidthMbps)
		} else {
			logger.Warn("bandwidth probe failed, assuming default",
				"endpoint", cfg.BandwidthProbeEndpoint, "error", err)
		}
	}
	return bandwidth.Assume(cfg.DefaultBandwidthMbps, clk.Now())
}

func runTransfer(cfg *config.Config, logger *slog.Logger, force bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("baghaul starting", "version", version.Info(),
		"source", cfg.LocalRosbagsDirectory, "destination", cfg.CloudUploadDirectory)

	target, err := resolveTarget(cfg)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	transporter, err := transport.Dial(ctx, target, logger)
	if err != nil {
		return fmt.Errorf("connecting to upload host: %w", err)
	}
	defer transporter.Close()

	compressor, err := compress.ForConfig(cfg)
	if err != nil {
		return err
	}

	clk := clock.Real()
	estimate := measureBandwidth(ctx, cfg, clk, logger)

	dirs, err := rosbag.ScanTree(cfg.LocalRosbagsDirectory, cfg.FilePattern)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		logger.Info("no bag files found", "root", cfg.LocalRosbagsDirectory)
		return nil
	}

	var failed []string
	for _, dir := range dirs {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, remaining directories skipped")
			break
		}
		if !force && marker.IsComplete(marker.PathFor(dir)) {
			logger.Info("skipping directory with completion marker", "dir", dir)
			continue
		}

		report, err := transferDirectory(ctx, cfg, dir, compressor, transporter, estimate, clk, logger)
		if err != nil {
			return err
		}
		if !report.Succeeded(cfg.ContinueOnError) {
			failed = append(failed, dir)
			if !cfg.ContinueOnError {
				break
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d directories had failed transfers", len(failed))
	}
	return nil
}

// transferDirectory runs the pipeline over one bag directory and
// writes its completion marker.
func transferDirectory(ctx context.Context, cfg *config.Config, dir string, compressor compress.Compressor, transporter *transport.SSH, estimate bandwidth.Estimate, clk clock.Clock, logger *slog.Logger) (*pipeline.Report, error) {
	files, err := rosbag.Scan(dir, cfg.FilePattern, clk)
	if err != nil {
		return nil, err
	}

	relative, err := filepath.Rel(cfg.LocalRosbagsDirectory, dir)
	if err != nil {
		return nil, fmt.Errorf("computing remote path for %s: %w", dir, err)
	}
	remoteDir := path.Join(cfg.CloudUploadDirectory, filepath.ToSlash(relative))

	var totalBytes int64
	for _, file := range files {
		totalBytes += file.Size
	}
	logger.Info("transferring directory", "dir", dir, "files", len(files),
		"totalBytes", totalBytes, "estimatedTime", bandwidth.FormatDuration(estimate.ETA(totalBytes)))

	// The recorder's metadata.yaml travels with the bags,
	// uncompressed, so the remote directory is self-describing even
	// if the run is interrupted partway.
	if err := pushMetadata(ctx, dir, remoteDir, transporter, logger); err != nil {
		return nil, err
	}

	queueSize := pipeline.QueueSizeHint(estimate, files, cfg.CompressionQueueMaxSize)
	p, err := pipeline.New(pipeline.Options{
		StagingDir:         filepath.Join(dir, stagingDirName),
		RemoteDir:          remoteDir,
		CompressionWorkers: cfg.CompressionParallelWorkers,
		QueueCapacity:      queueSize,
		TransferWorkers:    cfg.TransferParallelWorkers,
		UploadAttempts:     cfg.UploadAttempts,
		AttemptTimeout:     cfg.AttemptTimeout(),
		VerifyHash:         cfg.VerifyHash,
		CleanUp:            cfg.CleanUp,
	}, pipeline.Deps{
		Compressor:  compressor,
		Transporter: transporter,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	report, err := p.Run(ctx, files)
	if err != nil {
		return nil, err
	}

	// An empty staging directory is left behind when cleanup is on;
	// remove it quietly.
	os.Remove(filepath.Join(dir, stagingDirName))

	record := &marker.Marker{
		Version:   version.Info(),
		SourceDir: dir,
		RemoteDir: remoteDir,
		WrittenAt: clk.Now(),
		Report:    report,
	}
	if err := marker.Write(marker.PathFor(dir), record); err != nil {
		logger.Warn("writing completion marker", "dir", dir, "error", err)
	}

	logger.Info("directory finished", "dir", dir, "summary", report.Summary())
	return report, nil
}

// pushMetadata uploads the directory's metadata.yaml when present.
// Its absence is normal for bags recorded without an index.
func pushMetadata(ctx context.Context, dir, remoteDir string, transporter *transport.SSH, logger *slog.Logger) error {
	metadataPath := rosbag.MetadataPath(dir)
	if _, err := os.Stat(metadataPath); err != nil {
		logger.Debug("no metadata file", "dir", dir)
		return nil
	}
	if err := transporter.MkdirAll(ctx, remoteDir); err != nil {
		return fmt.Errorf("creating remote directory %s: %w", remoteDir, err)
	}
	remotePath := path.Join(remoteDir, rosbag.MetadataFileName)
	if err := transporter.Push(ctx, metadataPath, remotePath); err != nil {
		// Metadata is small and re-pushed on every run; a failure
		// here is worth a warning but should not stop the bags.
		logger.Warn("pushing metadata", "path", metadataPath, "error", err)
	}
	return nil
}
