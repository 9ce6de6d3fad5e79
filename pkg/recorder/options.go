package recorder

import (
	"github.com/xaionaro-go/liverecorder/pkg/clock"
	"github.com/xaionaro-go/liverecorder/pkg/metrics"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
)

// environment is what the orchestrator shares with its tasks and their
// sessions.
type environment struct {
	Source        types.StreamSource
	Probe         resolution.Probe
	Config        types.RecordingConfig
	Settings      types.ResolutionSettingsProvider
	Reporter      types.Reporter
	PostProcessor types.PostProcessor
	Metrics       *metrics.Metrics
	Clock         clock.Clock
}

type Option interface {
	apply(env *environment)
}

type Options []Option

func (s Options) apply(env *environment) {
	for _, opt := range s {
		opt.apply(env)
	}
}

type OptionReporter struct{ Reporter types.Reporter }

func (o OptionReporter) apply(env *environment) { env.Reporter = o.Reporter }

// OptionSettingsProvider makes every session re-read its resolution
// settings from the provider.
type OptionSettingsProvider struct {
	Provider types.ResolutionSettingsProvider
}

func (o OptionSettingsProvider) apply(env *environment) { env.Settings = o.Provider }

type OptionPostProcessor struct{ PostProcessor types.PostProcessor }

func (o OptionPostProcessor) apply(env *environment) { env.PostProcessor = o.PostProcessor }

type OptionMetrics struct{ Metrics *metrics.Metrics }

func (o OptionMetrics) apply(env *environment) { env.Metrics = o.Metrics }

type OptionClock struct{ Clock clock.Clock }

func (o OptionClock) apply(env *environment) { env.Clock = o.Clock }
