// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSH is a Transporter over an SSH connection. File content is
// streamed through remote shell commands (cat, mkdir -p, stat,
// b3sum), so the destination needs nothing installed beyond a POSIX
// userland — b3sum only when hash verification is configured.
type SSH struct {
	client *ssh.Client
	jump   *ssh.Client
	logger *slog.Logger
}

// Dial connects to the target, tunneling through its jump host if one
// is set. Authentication tries the ssh-agent first, then the usual
// key files. Host keys are accepted without verification, matching
// the fleet's provisioning model where hosts are reimaged routinely
// and known_hosts churn would break unattended runs.
func Dial(ctx context.Context, target *Target, logger *slog.Logger) (*SSH, error) {
	methods, err := authMethods()
	if err != nil {
		return nil, Fatal(fmt.Errorf("preparing ssh authentication: %w", err))
	}

	var jumpClient *ssh.Client
	dialDirect := func(addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, Transient(fmt.Errorf("dialing %s: %w", addr, err))
		}
		clientConn, channels, requests, err := ssh.NewClientConn(conn, addr, config)
		if err != nil {
			conn.Close()
			return nil, classifyHandshake(addr, err)
		}
		return ssh.NewClient(clientConn, channels, requests), nil
	}

	if target.Jump != nil {
		jumpConfig := clientConfig(target.Jump.User, methods)
		logger.Debug("connecting through jump host",
			"jump", target.Jump.Addr(), "target", target.Addr())
		jumpClient, err = dialDirect(target.Jump.Addr(), jumpConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to jump host: %w", err)
		}

		conn, err := jumpClient.DialContext(ctx, "tcp", target.Addr())
		if err != nil {
			jumpClient.Close()
			return nil, Transient(fmt.Errorf("dialing %s through jump host: %w", target.Addr(), err))
		}
		clientConn, channels, requests, err := ssh.NewClientConn(conn, target.Addr(), clientConfig(target.User, methods))
		if err != nil {
			conn.Close()
			jumpClient.Close()
			return nil, classifyHandshake(target.Addr(), err)
		}
		return &SSH{
			client: ssh.NewClient(clientConn, channels, requests),
			jump:   jumpClient,
			logger: logger,
		}, nil
	}

	logger.Debug("connecting", "target", target.Addr(), "user", target.User)
	client, err := dialDirect(target.Addr(), clientConfig(target.User, methods))
	if err != nil {
		return nil, err
	}
	return &SSH{client: client, logger: logger}, nil
}

func clientConfig(user string, methods []ssh.AuthMethod) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User: user,
		Auth: methods,
		// See Dial for why host keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
}

// classifyHandshake separates authentication failures (fatal: no
// retry will produce a key we do not have) from transport failures
// during the handshake (transient).
func classifyHandshake(addr string, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return Fatal(fmt.Errorf("authenticating to %s: %w", addr, err))
	}
	return Transient(fmt.Errorf("ssh handshake with %s: %w", addr, err))
}

// authMethods collects ssh-agent signers and local key files. An
// unreachable agent is skipped silently; a total absence of usable
// credentials is an error because every later operation would fail.
func authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, name := range []string{"id_ed25519", "id_rsa"} {
			data, err := os.ReadFile(filepath.Join(home, ".ssh", name))
			if err != nil {
				continue
			}
			signer, err := ssh.ParsePrivateKey(data)
			if err != nil {
				continue
			}
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no ssh-agent and no usable key in ~/.ssh")
	}
	return methods, nil
}

// Close shuts down the connection, including any jump tunnel.
func (s *SSH) Close() error {
	err := s.client.Close()
	if s.jump != nil {
		if jumpErr := s.jump.Close(); err == nil {
			err = jumpErr
		}
	}
	return err
}

// MkdirAll implements Transporter. A non-zero exit is fatal — the
// destination path is wrong or unwritable, and no retry changes that —
// while connection-level failures stay transient.
func (s *SSH) MkdirAll(ctx context.Context, dir string) error {
	if _, err := s.run(ctx, "mkdir -p "+shellQuote(dir), nil); err != nil {
		if _, ok := exitError(err); ok {
			return Fatal(fmt.Errorf("creating remote directory %s: %w", dir, err))
		}
		return Transient(fmt.Errorf("creating remote directory %s: %w", dir, err))
	}
	return nil
}

// Push implements Transporter. The local file is streamed as stdin of
// a remote "cat". A non-zero exit means the remote side could not
// write the path (permissions, bad path, full disk) — conditions a
// retry cannot fix — while connection-level failures are transient.
func (s *SSH) Push(ctx context.Context, localPath, remotePath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return Fatal(fmt.Errorf("opening %s: %w", localPath, err))
	}
	defer file.Close()

	if _, err := s.run(ctx, "cat > "+shellQuote(remotePath), file); err != nil {
		if _, ok := exitError(err); ok {
			return Fatal(fmt.Errorf("writing %s on remote host: %w", remotePath, err))
		}
		return Transient(fmt.Errorf("pushing %s to %s: %w", localPath, remotePath, err))
	}
	return nil
}

// Stat implements Transporter. A missing remote file is transient:
// the usual cause is a dropped or truncated transfer, which the retry
// path repairs.
func (s *SSH) Stat(ctx context.Context, remotePath string) (RemoteFileInfo, error) {
	out, err := s.run(ctx, "stat -c %s "+shellQuote(remotePath), nil)
	if err != nil {
		if _, ok := exitError(err); ok {
			return RemoteFileInfo{}, Transient(fmt.Errorf("remote file %s not found: %w", remotePath, err))
		}
		return RemoteFileInfo{}, Transient(fmt.Errorf("stating remote file %s: %w", remotePath, err))
	}

	size, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return RemoteFileInfo{}, Transient(fmt.Errorf("parsing remote size of %s: %w", remotePath, err))
	}
	return RemoteFileInfo{Size: size}, nil
}

// Hash implements the optional Hasher capability via a remote b3sum.
func (s *SSH) Hash(ctx context.Context, remotePath string) (string, error) {
	out, err := s.run(ctx, "b3sum --no-names "+shellQuote(remotePath), nil)
	if err != nil {
		if status, ok := exitError(err); ok && status == 127 {
			return "", Fatal(fmt.Errorf("b3sum not available on remote host (required by verify_hash): %w", err))
		}
		return "", Transient(fmt.Errorf("hashing remote file %s: %w", remotePath, err))
	}
	return strings.TrimSpace(out), nil
}

// run executes a remote command, honoring context cancellation by
// closing the session (the net effect is the remote process loses its
// stdin/stdout and terminates).
func (s *SSH) run(ctx context.Context, command string, stdin io.Reader) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("opening ssh session: %w", err)
	}

	var stdout, stderr bytes.Buffer
	session.Stdin = stdin
	session.Stdout = &stdout
	session.Stderr = &stderr

	s.logger.Debug("remote command", "command", command)

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return "", ctx.Err()
	case err := <-done:
		session.Close()
		if err != nil {
			message := strings.TrimSpace(stderr.String())
			if message != "" {
				return "", fmt.Errorf("%w: %s", err, message)
			}
			return "", err
		}
		return stdout.String(), nil
	}
}

// exitError reports whether err stems from a remote command exiting
// non-zero, and with which status.
func exitError(err error) (int, bool) {
	var exit *ssh.ExitError
	if errors.As(err, &exit) {
		return exit.ExitStatus(), true
	}
	return 0, false
}

// shellQuote wraps a path in single quotes, escaping embedded single
// quotes, so remote commands are safe against spaces and shell
// metacharacters in file names.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
