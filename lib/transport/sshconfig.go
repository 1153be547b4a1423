// Copyright 2026 The Baghaul Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Target names a destination SSH endpoint, possibly reached through a
// jump host.
type Target struct {
	// User is the login name.
	User string

	// Host is the hostname or address.
	Host string

	// Port is the TCP port; empty means 22.
	Port string

	// Jump, when non-nil, is the intermediate host the connection is
	// tunneled through (ssh_config ProxyJump).
	Jump *Target
}

// Addr returns the dialable host:port of the target.
func (t *Target) Addr() string {
	port := t.Port
	if port == "" {
		port = "22"
	}
	return t.Host + ":" + port
}

// ResolveAlias resolves a Host alias from the user's ~/.ssh/config
// into a Target, following one level of ProxyJump. ProxyCommand is
// not supported and is rejected explicitly rather than silently
// ignored, since the operator clearly expects a tunnel.
func ResolveAlias(alias string) (*Target, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locating home directory: %w", err)
	}
	return resolveAliasIn(filepath.Join(home, ".ssh", "config"), alias)
}

func resolveAliasIn(configPath, alias string) (*Target, error) {
	entries, err := parseSSHConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry := lookupHost(entries, alias)
	if entry == nil {
		return nil, fmt.Errorf("ssh config %s has no Host entry matching %q", configPath, alias)
	}
	if entry.proxyCommand != "" {
		return nil, fmt.Errorf("ssh alias %q uses ProxyCommand, which is not supported", alias)
	}

	target := &Target{
		User: entry.user,
		Host: entry.hostName,
		Port: entry.port,
	}
	if target.Host == "" {
		target.Host = alias
	}

	if entry.proxyJump != "" {
		jumpEntry := lookupHost(entries, entry.proxyJump)
		jump := &Target{Host: entry.proxyJump}
		if jumpEntry != nil {
			if jumpEntry.hostName != "" {
				jump.Host = jumpEntry.hostName
			}
			jump.User = jumpEntry.user
			jump.Port = jumpEntry.port
		}
		target.Jump = jump
	}

	return target, nil
}

// hostEntry is the subset of ssh_config keywords the transporter
// understands.
type hostEntry struct {
	patterns     []string
	hostName     string
	user         string
	port         string
	proxyJump    string
	proxyCommand string
}

// parseSSHConfig reads the Host blocks of an OpenSSH client
// configuration file. Only the keywords needed for alias resolution
// are retained; everything else is skipped.
func parseSSHConfig(path string) ([]*hostEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ssh config: %w", err)
	}
	defer file.Close()

	var entries []*hostEntry
	var current *hostEntry

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		keyword, value, ok := splitKeyword(line)
		if !ok {
			continue
		}

		if keyword == "host" {
			current = &hostEntry{patterns: strings.Fields(value)}
			entries = append(entries, current)
			continue
		}
		if current == nil {
			// Keywords before the first Host block apply globally;
			// alias resolution has no use for them.
			continue
		}

		switch keyword {
		case "hostname":
			current.hostName = value
		case "user":
			current.user = value
		case "port":
			current.port = value
		case "proxyjump":
			current.proxyJump = value
		case "proxycommand":
			current.proxyCommand = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ssh config: %w", err)
	}
	return entries, nil
}

// splitKeyword splits an ssh_config line into lowercase keyword and
// value. Both "Key value" and "Key=value" forms are accepted.
func splitKeyword(line string) (keyword, value string, ok bool) {
	if i := strings.IndexAny(line, " \t="); i > 0 {
		return strings.ToLower(line[:i]), strings.TrimSpace(strings.TrimLeft(line[i:], " \t=")), true
	}
	return "", "", false
}

// lookupHost merges every entry whose pattern list matches the
// alias, the way OpenSSH applies its configuration: blocks are read
// in order and, per option, the first value obtained wins. A specific
// alias block and surrounding "Host *" defaults blocks therefore all
// contribute, each filling only the options earlier blocks left
// unset. Returns nil when no block matches. Negated patterns
// ("!pattern") exclude an otherwise matching entry.
func lookupHost(entries []*hostEntry, alias string) *hostEntry {
	var merged *hostEntry
	for _, entry := range entries {
		if !entryMatches(entry, alias) {
			continue
		}
		if merged == nil {
			merged = &hostEntry{patterns: entry.patterns}
		}
		if merged.hostName == "" {
			merged.hostName = entry.hostName
		}
		if merged.user == "" {
			merged.user = entry.user
		}
		if merged.port == "" {
			merged.port = entry.port
		}
		if merged.proxyJump == "" {
			merged.proxyJump = entry.proxyJump
		}
		if merged.proxyCommand == "" {
			merged.proxyCommand = entry.proxyCommand
		}
	}
	return merged
}

// entryMatches reports whether a Host block's pattern list matches
// the alias and no negated pattern excludes it.
func entryMatches(entry *hostEntry, alias string) bool {
	matched := false
	for _, pattern := range entry.patterns {
		if negated := strings.TrimPrefix(pattern, "!"); negated != pattern {
			if matchPattern(negated, alias) {
				return false
			}
			continue
		}
		if matchPattern(pattern, alias) {
			matched = true
		}
	}
	return matched
}

// matchPattern implements ssh_config's * and ? globbing.
func matchPattern(pattern, name string) bool {
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
