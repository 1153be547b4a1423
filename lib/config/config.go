// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for baghaul binaries.
//
// Configuration is loaded from a single YAML file specified by the
// --config flag. There are no fallbacks or automatic discovery; this
// ensures deterministic, auditable configuration with no hidden
// overrides. All keys are validated on load so a bad configuration
// aborts the run before any job starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Codec names accepted for the compression_codec key.
const (
	CodecMcap = "mcap"
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"
)

// Config holds every recognized configuration key. Key names follow
// the operator-facing YAML file.
type Config struct {
	// LocalRosbagsDirectory is the absolute path of the directory
	// tree scanned for recordings.
	LocalRosbagsDirectory string `yaml:"local_rosbags_directory"`

	// CloudUploadDirectory is the absolute destination path on the
	// remote host. The local directory layout is mirrored beneath it.
	CloudUploadDirectory string `yaml:"cloud_upload_directory"`

	// CloudSSHAlias is a host alias from ~/.ssh/config. When set,
	// hostname, user, and any ProxyJump are resolved from the alias
	// and CloudUser/CloudHostname must be empty.
	CloudSSHAlias string `yaml:"cloud_ssh_alias"`

	// CloudUser and CloudHostname identify the destination directly
	// when no alias is configured.
	CloudUser     string `yaml:"cloud_user"`
	CloudHostname string `yaml:"cloud_hostname"`

	// FilePattern selects candidate files within a recording
	// directory. Defaults to "*.mcap".
	FilePattern string `yaml:"file_pattern"`

	// CompressionCodec selects the compression backend: "mcap"
	// (external mcap CLI), "zstd", or "lz4". Defaults to "mcap".
	CompressionCodec string `yaml:"compression_codec"`

	// McapBinPath is the absolute path of the mcap CLI binary.
	// Required when CompressionCodec is "mcap".
	McapBinPath string `yaml:"mcap_bin_path"`

	// McapCompressionChunkSize is the chunk size handed to the
	// compression backend, in bytes.
	McapCompressionChunkSize int `yaml:"mcap_compression_chunk_size"`

	// CompressionParallelWorkers is the size of the compression
	// worker pool. Must be at least 1.
	CompressionParallelWorkers int `yaml:"compression_parallel_workers"`

	// CompressionQueueMaxSize bounds the number of compressed
	// artifacts awaiting transfer. Compression workers block when
	// the queue is full, which caps peak disk usage from staged
	// artifacts. Must be at least 1.
	CompressionQueueMaxSize int `yaml:"compression_queue_max_size"`

	// TransferParallelWorkers is the size of the transfer worker
	// pool. Defaults to 1 (serial uploads).
	TransferParallelWorkers int `yaml:"transfer_parallel_workers"`

	// UploadAttempts is the total number of tries per file,
	// including the first. Defaults to 3.
	UploadAttempts int `yaml:"upload_attempts"`

	// TransferAttemptTimeoutSeconds bounds a single transfer
	// attempt. Expiry is treated as a transient failure. Zero means
	// no per-attempt timeout.
	TransferAttemptTimeoutSeconds int `yaml:"transfer_attempt_timeout_seconds"`

	// CleanUp enables deletion of local originals and compressed
	// artifacts once a file is verified on the remote side.
	CleanUp bool `yaml:"clean_up"`

	// ContinueOnError makes the process exit zero even when some
	// jobs failed. The per-job failures are still reported.
	ContinueOnError bool `yaml:"continue_on_error"`

	// VerifyHash additionally compares a content hash during
	// verification; without it only sizes are compared.
	VerifyHash bool `yaml:"verify_hash"`

	// BandwidthProbeEndpoint is the host:port of the throughput
	// measurement endpoint. Empty disables probing; the default
	// estimate is assumed instead.
	BandwidthProbeEndpoint string `yaml:"bandwidth_probe_endpoint"`

	// DefaultBandwidthMbps is the assumed throughput (megabits per
	// second) used when the probe endpoint is unset or unreachable.
	DefaultBandwidthMbps float64 `yaml:"default_bandwidth_mbps"`
}

// AttemptTimeout returns the per-attempt transfer timeout as a
// duration, or zero when unconfigured.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.TransferAttemptTimeoutSeconds) * time.Second
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := &Config{
		FilePattern:             "*.mcap",
		CompressionCodec:        CodecMcap,
		TransferParallelWorkers: 1,
		UploadAttempts:          3,
		DefaultBandwidthMbps:    100,
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file %s: %w", path, err)
	}
	return config, nil
}

// Validate checks every key for presence and plausibility. It returns
// the first problem found so the operator sees one actionable message
// at a time.
func (c *Config) Validate() error {
	if c.LocalRosbagsDirectory == "" {
		return fmt.Errorf("local_rosbags_directory is required")
	}
	if !filepath.IsAbs(c.LocalRosbagsDirectory) {
		return fmt.Errorf("local_rosbags_directory must be an absolute path, got %q", c.LocalRosbagsDirectory)
	}
	if c.CloudUploadDirectory == "" {
		return fmt.Errorf("cloud_upload_directory is required")
	}
	if !filepath.IsAbs(c.CloudUploadDirectory) {
		return fmt.Errorf("cloud_upload_directory must be an absolute path, got %q", c.CloudUploadDirectory)
	}

	// The destination is named either by an ssh_config alias or by an
	// explicit user/host pair, never both.
	if c.CloudSSHAlias == "" {
		if c.CloudUser == "" || c.CloudHostname == "" {
			return fmt.Errorf("cloud_user and cloud_hostname are required when cloud_ssh_alias is not set")
		}
	} else if c.CloudUser != "" || c.CloudHostname != "" {
		return fmt.Errorf("cloud_ssh_alias and cloud_user/cloud_hostname are mutually exclusive")
	}

	switch c.CompressionCodec {
	case CodecMcap:
		if c.McapBinPath == "" {
			return fmt.Errorf("mcap_bin_path is required when compression_codec is %q", CodecMcap)
		}
		if !filepath.IsAbs(c.McapBinPath) {
			return fmt.Errorf("mcap_bin_path must be an absolute path, got %q", c.McapBinPath)
		}
	case CodecZstd, CodecLZ4:
	default:
		return fmt.Errorf("compression_codec must be one of %q, %q, %q, got %q",
			CodecMcap, CodecZstd, CodecLZ4, c.CompressionCodec)
	}

	if c.McapCompressionChunkSize <= 0 {
		return fmt.Errorf("mcap_compression_chunk_size must be a positive integer, got %d", c.McapCompressionChunkSize)
	}
	if c.CompressionParallelWorkers < 1 {
		return fmt.Errorf("compression_parallel_workers must be at least 1, got %d", c.CompressionParallelWorkers)
	}
	if c.CompressionQueueMaxSize < 1 {
		return fmt.Errorf("compression_queue_max_size must be at least 1, got %d", c.CompressionQueueMaxSize)
	}
	if c.TransferParallelWorkers < 1 {
		return fmt.Errorf("transfer_parallel_workers must be at least 1, got %d", c.TransferParallelWorkers)
	}
	if c.UploadAttempts < 1 {
		return fmt.Errorf("upload_attempts must be at least 1, got %d", c.UploadAttempts)
	}
	if c.TransferAttemptTimeoutSeconds < 0 {
		return fmt.Errorf("transfer_attempt_timeout_seconds must not be negative, got %d", c.TransferAttemptTimeoutSeconds)
	}
	if c.DefaultBandwidthMbps <= 0 {
		return fmt.Errorf("default_bandwidth_mbps must be positive, got %v", c.DefaultBandwidthMbps)
	}
	return nil
}
