// Package config is the persisted settings file of the recorder.
package config

import (
	"net/url"
	"time"

	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/liverecorder/pkg/secret"
)

const (
	DefaultPath                    = "~/.config/liverecorder/config.yaml"
	DefaultResolutionCheckInterval = 5
)

type config struct {
	Resolution ResolutionConfig         `yaml:"resolution"`
	Cookies    map[string]secret.String `yaml:"cookies,omitempty"`
	Telegram   TelegramConfig           `yaml:"telegram,omitempty"`
	Proxy      secret.String            `yaml:"proxy,omitempty"`
	OutputDir  string                   `yaml:"output_dir,omitempty"`
}

type Config config

func NewConfig() Config {
	return Config{
		Resolution: ResolutionConfig{
			Default: ResolutionDefaults{
				RestartOnResolutionChange: false,
				CheckInterval:             DefaultResolutionCheckInterval,
			},
			Users: map[string]ResolutionOverride{},
			Rooms: map[string]ResolutionOverride{},
		},
		Cookies: map[string]secret.String{},
	}
}

type ResolutionConfig struct {
	Default ResolutionDefaults            `yaml:"default"`
	Users   map[string]ResolutionOverride `yaml:"users,omitempty"`
	Rooms   map[string]ResolutionOverride `yaml:"rooms,omitempty"`
}

type ResolutionDefaults struct {
	RestartOnResolutionChange bool `yaml:"restart_on_resolution_change"`

	// CheckInterval is in seconds.
	CheckInterval uint `yaml:"resolution_check_interval"`
}

// ResolutionOverride is a per-user or per-room setting; unset fields fall
// back to the next level.
type ResolutionOverride struct {
	RestartOnResolutionChange *bool `yaml:"restart_on_resolution_change,omitempty"`
	CheckInterval             *uint `yaml:"resolution_check_interval,omitempty"`
}

type TelegramConfig struct {
	BotToken secret.String `yaml:"bot_token,omitempty"`
	ChatID   string        `yaml:"chat_id,omitempty"`
}

func (cfg TelegramConfig) IsSet() bool {
	return !cfg.BotToken.IsZero() && cfg.ChatID != ""
}

// ResolutionSettings returns the effective settings for the target. Every
// field is taken from the user override if set, then from the room
// override, then from the default.
func (cfg *Config) ResolutionSettings(handle, roomID string) types.ResolutionSettings {
	restart := cfg.Resolution.Default.RestartOnResolutionChange
	interval := cfg.Resolution.Default.CheckInterval

	var overrides []ResolutionOverride
	if handle != "" {
		if o, ok := cfg.Resolution.Users[handle]; ok {
			overrides = append(overrides, o)
		}
	}
	if roomID != "" {
		if o, ok := cfg.Resolution.Rooms[roomID]; ok {
			overrides = append(overrides, o)
		}
	}

	restartSet, intervalSet := false, false
	for _, o := range overrides {
		if o.RestartOnResolutionChange != nil && !restartSet {
			restart = *o.RestartOnResolutionChange
			restartSet = true
		}
		if o.CheckInterval != nil && !intervalSet {
			interval = *o.CheckInterval
			intervalSet = true
		}
	}
	if interval == 0 {
		interval = DefaultResolutionCheckInterval
	}

	return types.ResolutionSettings{
		RestartOnResolutionChange: restart,
		CheckInterval:             time.Duration(interval) * time.Second,
	}
}

func (cfg *Config) SetUserOverride(handle string, fn func(*ResolutionOverride)) {
	if cfg.Resolution.Users == nil {
		cfg.Resolution.Users = map[string]ResolutionOverride{}
	}
	o := cfg.Resolution.Users[handle]
	fn(&o)
	cfg.Resolution.Users[handle] = o
}

func (cfg *Config) SetRoomOverride(roomID string, fn func(*ResolutionOverride)) {
	if cfg.Resolution.Rooms == nil {
		cfg.Resolution.Rooms = map[string]ResolutionOverride{}
	}
	o := cfg.Resolution.Rooms[roomID]
	fn(&o)
	cfg.Resolution.Rooms[roomID] = o
}

// CookieMap returns the cookies as plain values.
func (cfg *Config) CookieMap() map[string]string {
	result := make(map[string]string, len(cfg.Cookies))
	for k, v := range cfg.Cookies {
		result[k] = v.Get()
	}
	return result
}

// SecretWords lists the secret values of the settings, to be hidden from
// the logs.
func (cfg *Config) SecretWords() []string {
	var words []string
	if !cfg.Telegram.BotToken.IsZero() {
		words = append(words, cfg.Telegram.BotToken.Get())
	}
	if !cfg.Proxy.IsZero() {
		words = append(words, ProxySecretWords(cfg.Proxy.Get())...)
	}
	for _, v := range cfg.Cookies {
		if !v.IsZero() {
			words = append(words, v.Get())
		}
	}
	return words
}

// ProxySecretWords returns the password of the proxy URL, if any.
func ProxySecretWords(proxy string) []string {
	u, err := url.Parse(proxy)
	if err != nil || u.User == nil {
		return nil
	}
	if password, ok := u.User.Password(); ok && password != "" {
		return []string{password}
	}
	return nil
}
