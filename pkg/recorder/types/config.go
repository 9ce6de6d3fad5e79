package types

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

type RecordingConfig struct {
	Mode Mode

	// RecheckInterval is how long an automatic-mode task waits before
	// checking an offline target again.
	RecheckInterval time.Duration

	// MaxDuration limits a single session; zero means unlimited.
	MaxDuration time.Duration

	OutputDir string

	RestartOnResolutionChange bool
	ResolutionCheckInterval   time.Duration

	BufferSize            int
	ProgressInterval      time.Duration
	LivenessCheckInterval time.Duration
	TransportRetryDelay   time.Duration
	ConnectionCooldown    time.Duration
	RestartDelay          time.Duration
	StartStagger          time.Duration
	ShutdownTimeout       time.Duration
	ProbeTimeout          time.Duration
	WaitStep              time.Duration

	// MaxConsecutiveConnectionFailures turns a streak of connection-class
	// failures into a task failure; zero means the task never gives up.
	MaxConsecutiveConnectionFailures uint
}

var DefaultConfig = func(ctx context.Context) RecordingConfig {
	return RecordingConfig{
		Mode:                    ModeManual,
		RecheckInterval:         5 * time.Minute,
		OutputDir:               ".",
		ResolutionCheckInterval: 5 * time.Second,
		BufferSize:              512 * 1024,
		ProgressInterval:        2 * time.Second,
		LivenessCheckInterval:   time.Minute,
		TransportRetryDelay:     2 * time.Second,
		ConnectionCooldown:      2 * time.Minute,
		RestartDelay:            2 * time.Second,
		StartStagger:            time.Second,
		ShutdownTimeout:         5 * time.Second,
		ProbeTimeout:            10 * time.Second,
		WaitStep:                time.Second,
	}
}

func (cfg RecordingConfig) Validate() error {
	var result *multierror.Error
	if cfg.Mode != ModeManual && cfg.Mode != ModeAutomatic {
		result = multierror.Append(result, fmt.Errorf("invalid mode: %s", cfg.Mode))
	}
	if cfg.Mode == ModeAutomatic && cfg.RecheckInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("the automatic re-check interval must be positive, got %v", cfg.RecheckInterval))
	}
	if cfg.MaxDuration < 0 {
		result = multierror.Append(result, fmt.Errorf("the maximal duration cannot be negative, got %v", cfg.MaxDuration))
	}
	if cfg.BufferSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("the buffer size must be positive, got %d", cfg.BufferSize))
	}
	if cfg.WaitStep <= 0 {
		result = multierror.Append(result, fmt.Errorf("the wait step must be positive, got %v", cfg.WaitStep))
	}
	return result.ErrorOrNil()
}

func (cfg RecordingConfig) Options() Options {
	return Options{
		OptionMode(cfg.Mode),
		OptionRecheckInterval(cfg.RecheckInterval),
		OptionMaxDuration(cfg.MaxDuration),
		OptionOutputDir(cfg.OutputDir),
		OptionRestartOnResolutionChange(cfg.RestartOnResolutionChange),
		OptionResolutionCheckInterval(cfg.ResolutionCheckInterval),
		OptionMaxConsecutiveConnectionFailures(cfg.MaxConsecutiveConnectionFailures),
	}
}

type Option interface {
	Apply(cfg *RecordingConfig)
}

type Options []Option

func (s Options) Config(ctx context.Context) RecordingConfig {
	cfg := DefaultConfig(ctx)
	s.apply(&cfg)
	return cfg
}

func (s Options) apply(cfg *RecordingConfig) {
	for _, opt := range s {
		opt.Apply(cfg)
	}
}

type OptionMode Mode

func (s OptionMode) Apply(cfg *RecordingConfig) {
	cfg.Mode = Mode(s)
}

type OptionRecheckInterval time.Duration

func (s OptionRecheckInterval) Apply(cfg *RecordingConfig) {
	cfg.RecheckInterval = time.Duration(s)
}

type OptionMaxDuration time.Duration

func (s OptionMaxDuration) Apply(cfg *RecordingConfig) {
	cfg.MaxDuration = time.Duration(s)
}

type OptionOutputDir string

func (s OptionOutputDir) Apply(cfg *RecordingConfig) {
	cfg.OutputDir = string(s)
}

type OptionRestartOnResolutionChange bool

func (s OptionRestartOnResolutionChange) Apply(cfg *RecordingConfig) {
	cfg.RestartOnResolutionChange = bool(s)
}

type OptionResolutionCheckInterval time.Duration

func (s OptionResolutionCheckInterval) Apply(cfg *RecordingConfig) {
	cfg.ResolutionCheckInterval = time.Duration(s)
}

type OptionMaxConsecutiveConnectionFailures uint

func (s OptionMaxConsecutiveConnectionFailures) Apply(cfg *RecordingConfig) {
	cfg.MaxConsecutiveConnectionFailures = uint(s)
}
