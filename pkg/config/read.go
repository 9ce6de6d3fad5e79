package config

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/goccy/go-yaml"
)

var _ io.Reader = (*Config)(nil)
var _ io.ReaderFrom = (*Config)(nil)
var _ yaml.BytesUnmarshaler = (*Config)(nil)

func (cfg *Config) Read(
	b []byte,
) (int, error) {
	return len(b), cfg.UnmarshalYAML(b)
}

func (cfg *Config) UnmarshalYAML(b []byte) (_err error) {
	*cfg = NewConfig()
	err := yaml.Unmarshal(b, (*config)(cfg))
	if err != nil {
		return fmt.Errorf("unable to unmarshal YAML of the root of the config: %w", err)
	}
	return nil
}

func (cfg *Config) ReadFrom(
	r io.Reader,
) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), fmt.Errorf("unable to read: %w", err)
	}

	n, err := cfg.Read(b)
	if err != nil {
		return int64(n), fmt.Errorf("unable to parse: %w", err)
	}

	return int64(n), nil
}

func ReadConfigFromPath(
	ctx context.Context,
	cfgPath string,
	cfg *Config,
) error {
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("unable to read file '%s': %w", cfgPath, err)
	}

	_, err = cfg.Read(b)
	return err
}

func ReadOrCreateConfigFile(
	ctx context.Context,
	cfgPath string,
) (*Config, error) {
	_, err := os.Stat(cfgPath)
	switch {
	case err == nil:
		cfg := Config{}
		err := ReadConfigFromPath(ctx, cfgPath, &cfg)
		if err != nil {
			return nil, fmt.Errorf("unable to read the config from path '%s': %w", cfgPath, err)
		}
		return &cfg, nil
	case os.IsNotExist(err):
		logger.Debugf(ctx, "cannot find file '%s', creating", cfgPath)
		cfg := NewConfig()
		err := WriteConfigToPath(ctx, cfgPath, cfg)
		if err != nil {
			logger.Errorf(ctx, "unable to write config to path '%s': %v", cfgPath, err)
		}
		return &cfg, nil
	default:
		return nil, fmt.Errorf("unable to access file '%s': %w", cfgPath, err)
	}
}
