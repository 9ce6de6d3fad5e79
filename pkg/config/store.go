package config

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/xpath"
	"github.com/xaionaro-go/xsync"
)

// Store is the settings file on disk. Every read goes to the disk, so
// changes made by another process (for example `liverecorder config
// resolution enable`) are picked up by the next recording session.
type Store struct {
	Path string

	locker xsync.Mutex
}

var _ types.ResolutionSettingsProvider = (*Store)(nil)

// NewStore expands '~' in the path.
func NewStore(cfgPath string) (*Store, error) {
	if cfgPath == "" {
		cfgPath = DefaultPath
	}
	p, err := xpath.Expand(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path '%s': %w", cfgPath, err)
	}
	return &Store{Path: p}, nil
}

func (s *Store) Load(ctx context.Context) (*Config, error) {
	return xsync.DoR2(ctx, &s.locker, func() (*Config, error) {
		return ReadOrCreateConfigFile(ctx, s.Path)
	})
}

// Update reads the settings, applies fn and writes the result back.
func (s *Store) Update(
	ctx context.Context,
	fn func(*Config) error,
) (_err error) {
	logger.Debugf(ctx, "Update")
	defer func() { logger.Debugf(ctx, "/Update: %v", _err) }()
	return xsync.DoR1(ctx, &s.locker, func() error {
		cfg, err := ReadOrCreateConfigFile(ctx, s.Path)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		return WriteConfigToPath(ctx, s.Path, *cfg)
	})
}

func (s *Store) ResolutionSettings(
	ctx context.Context,
	handle string,
	roomID string,
) (types.ResolutionSettings, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return types.ResolutionSettings{}, fmt.Errorf("unable to load the settings: %w", err)
	}
	return cfg.ResolutionSettings(handle, roomID), nil
}

func (s *Store) SetUserRestartOnResolutionChange(ctx context.Context, handle string, enable bool) error {
	handle = types.NormalizeHandle(handle)
	return s.Update(ctx, func(cfg *Config) error {
		cfg.SetUserOverride(handle, func(o *ResolutionOverride) {
			o.RestartOnResolutionChange = &enable
		})
		logger.Infof(ctx, "set restart_on_resolution_change=%v for user @%s", enable, handle)
		return nil
	})
}

func (s *Store) SetRoomRestartOnResolutionChange(ctx context.Context, roomID string, enable bool) error {
	return s.Update(ctx, func(cfg *Config) error {
		cfg.SetRoomOverride(roomID, func(o *ResolutionOverride) {
			o.RestartOnResolutionChange = &enable
		})
		logger.Infof(ctx, "set restart_on_resolution_change=%v for room %s", enable, roomID)
		return nil
	})
}

// SetCheckInterval sets the resolution check interval (in seconds) of a
// user, a room, or (if both are empty) the default.
func (s *Store) SetCheckInterval(
	ctx context.Context,
	handle string,
	roomID string,
	seconds uint,
) error {
	if seconds == 0 {
		return fmt.Errorf("the interval must be positive")
	}
	handle = types.NormalizeHandle(handle)
	return s.Update(ctx, func(cfg *Config) error {
		switch {
		case handle != "" && roomID != "":
			return fmt.Errorf("only one of the user and the room may be set")
		case handle != "":
			cfg.SetUserOverride(handle, func(o *ResolutionOverride) {
				o.CheckInterval = &seconds
			})
		case roomID != "":
			cfg.SetRoomOverride(roomID, func(o *ResolutionOverride) {
				o.CheckInterval = &seconds
			})
		default:
			cfg.Resolution.Default.CheckInterval = seconds
		}
		return nil
	})
}
