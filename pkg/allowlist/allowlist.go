// Package allowlist gates the commands that create remote or local data, so
// jws can run unattended in read-only mode.
package allowlist

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvCommandAllowlist lists the allowed commands, comma-separated
	EnvCommandAllowlist = "JWS_COMMAND_ALLOWLIST"

	// EnvReadOnly restricts jws to commands that only read
	EnvReadOnly = "JWS_READONLY"
)

// ReadOnlyCommands never write to Jira or the workspace
var ReadOnlyCommands = []string{
	"check",
	"projects",
	"statuses",
	"statuses list",
	"fields",
	"fields list",
	"fields detect",
	"allowlist",
	"allowlist status",
	"allowlist commands",
	"allowlist check",
	"version",
	"help",
}

// WriteCommands create Jira resources or change local state
var WriteCommands = []string{
	"configure",
	"fields map",
	"statuses map",
	"import",
	"export",
}

// ErrBlocked is returned by Check for a command the allowlist rejects
var ErrBlocked = errors.New("command blocked")

// Mode is how a Checker restricts commands
type Mode int

const (
	ModeOff Mode = iota
	ModeReadOnly
	ModeExplicit
)

// Checker validates commands against the environment's restrictions
type Checker struct {
	mode    Mode
	allowed map[string]bool
}

// NewChecker reads the restrictions from the environment. JWS_READONLY wins
// over an explicit list.
func NewChecker() *Checker {
	if os.Getenv(EnvReadOnly) != "" {
		return &Checker{mode: ModeReadOnly, allowed: toSet(ReadOnlyCommands)}
	}

	list := os.Getenv(EnvCommandAllowlist)
	if list == "" {
		return &Checker{mode: ModeOff}
	}
	return &Checker{mode: ModeExplicit, allowed: toSet(strings.Split(list, ","))}
}

func toSet(commands []string) map[string]bool {
	set := make(map[string]bool, len(commands))
	for _, c := range commands {
		if c = normalize(c); c != "" {
			set[c] = true
		}
	}
	return set
}

func normalize(command string) string {
	return strings.Join(strings.Fields(strings.ToLower(command)), " ")
}

// Mode returns the active restriction
func (c *Checker) Mode() Mode {
	return c.mode
}

// IsAllowed reports whether command may run. help and version always may.
// In an explicit list a parent command allows its subcommands, so "fields"
// allows "fields list".
func (c *Checker) IsAllowed(command string) bool {
	if c.mode == ModeOff {
		return true
	}

	command = normalize(command)
	switch command {
	case "help", "version", "--help", "-h":
		return true
	}
	if c.allowed[command] {
		return true
	}
	if c.mode != ModeExplicit {
		return false
	}
	for parent := range c.allowed {
		if strings.HasPrefix(command, parent+" ") {
			return true
		}
	}
	return false
}

// Check returns an ErrBlocked error naming the restriction that applies
func (c *Checker) Check(command string) error {
	if c.IsAllowed(command) {
		return nil
	}
	if c.mode == ModeReadOnly {
		return fmt.Errorf("%w: '%s' is not allowed, %s mode enabled (only read operations allowed)", ErrBlocked, command, EnvReadOnly)
	}
	return fmt.Errorf("%w: '%s' is not in the allowlist (set via %s)", ErrBlocked, command, EnvCommandAllowlist)
}

// IsEnabled returns whether any restriction is active
func (c *Checker) IsEnabled() bool {
	return c.mode != ModeOff
}

// IsReadOnly returns whether read-only mode is active
func (c *Checker) IsReadOnly() bool {
	return c.mode == ModeReadOnly
}

// GetAllowedCommands returns the allowed commands, nil when unrestricted
func (c *Checker) GetAllowedCommands() []string {
	if c.mode == ModeOff {
		return nil
	}
	commands := make([]string, 0, len(c.allowed))
	for cmd := range c.allowed {
		commands = append(commands, cmd)
	}
	return commands
}

// IsWrite reports whether command is classified as writing
func IsWrite(command string) bool {
	command = normalize(command)
	for _, w := range WriteCommands {
		if w == command {
			return true
		}
	}
	return false
}

// AllCommands returns every classified command, read commands first
func AllCommands() []string {
	all := make([]string, 0, len(ReadOnlyCommands)+len(WriteCommands))
	all = append(all, ReadOnlyCommands...)
	return append(all, WriteCommands...)
}
