// Package sandbox implements the sandbox runner (C6): a short-lived
// container per job with hard resource caps, launched via the Docker
// Engine API and guaranteed to be removed on every exit path.
package sandbox

import (
	"fmt"
	"time"
)

// Config is the explicit, validated configuration for one container run.
// Every field is a hard cap, not a recommendation.
type Config struct {
	ImageName               string
	MemoryLimitBytes        int64
	CPUNanoCores            int64
	Timeout                 time.Duration
	WorkingDirectory        string
	WorkspaceVolume         string // optional read-write bind mount for the clone
	ReadOnlyRootFilesystem  bool
	AutoRemove              bool
	NoNewPrivileges         bool
	Privileged              bool
	NetworkDisabled         bool
	Command                 []string
	Env                     []string
}

const (
	// DefaultMemoryLimitBytes is 2 GiB.
	DefaultMemoryLimitBytes = 2 * 1024 * 1024 * 1024
	// DefaultCPUNanoCores is ~2 cores.
	DefaultCPUNanoCores = 2_000_000_000
	// DefaultTimeout is the wall-clock kill deadline.
	DefaultTimeout = 10 * time.Minute
	// DefaultWorkingDirectory is the container's CWD.
	DefaultWorkingDirectory = "/workspace"
)

// NewConfig builds a Config for imageName with every documented default,
// rejecting a negative memoryLimitBytes, a non-positive cpuNanoCores, or a
// blank image name.
func NewConfig(imageName string) (Config, error) {
	cfg := Config{
		ImageName:              imageName,
		MemoryLimitBytes:       DefaultMemoryLimitBytes,
		CPUNanoCores:           DefaultCPUNanoCores,
		Timeout:                DefaultTimeout,
		WorkingDirectory:       DefaultWorkingDirectory,
		ReadOnlyRootFilesystem: true,
		AutoRemove:             true,
		NoNewPrivileges:        true,
		Privileged:             false,
	}
	return Validate(cfg)
}

// Validate re-checks the hard invariants against an already-constructed
// Config, e.g. after a caller has overridden MemoryLimitBytes or
// CPUNanoCores post-construction.
func Validate(cfg Config) (Config, error) {
	if cfg.ImageName == "" {
		return Config{}, fmt.Errorf("sandbox: image name is required")
	}
	if cfg.MemoryLimitBytes < 0 {
		return Config{}, fmt.Errorf("sandbox: memoryLimitBytes must be >= 0, got %d", cfg.MemoryLimitBytes)
	}
	if cfg.CPUNanoCores <= 0 {
		return Config{}, fmt.Errorf("sandbox: cpuNanoCores must be > 0, got %d", cfg.CPUNanoCores)
	}
	cfg.Privileged = false // must remain false regardless of what the caller set
	return cfg, nil
}

// SecureDefaults returns the "secure" preset: network reachable, root
// filesystem read-only, new privileges dropped.
func SecureDefaults(imageName string) (Config, error) {
	cfg, err := NewConfig(imageName)
	if err != nil {
		return Config{}, err
	}
	cfg.NetworkDisabled = false
	return Validate(cfg)
}

// IsolatedDefaults returns the "isolated" preset: network disabled
// entirely, in addition to the secure preset's read-only root filesystem
// and dropped privileges.
func IsolatedDefaults(imageName string) (Config, error) {
	cfg, err := NewConfig(imageName)
	if err != nil {
		return Config{}, err
	}
	cfg.NetworkDisabled = true
	return Validate(cfg)
}

// WithCommand returns a copy of cfg with Command set, for callers that
// build a Config via NewConfig/SecureDefaults/IsolatedDefaults and then
// need to specify what to run.
func (c Config) WithCommand(command ...string) Config {
	c.Command = command
	return c
}

// WithWorkspaceVolume returns a copy of cfg with the read-write bind
// mount for the repository clone set.
func (c Config) WithWorkspaceVolume(hostPath string) Config {
	c.WorkspaceVolume = hostPath
	return c
}
