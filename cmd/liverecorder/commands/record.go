package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/liverecorder/pkg/config"
	"github.com/xaionaro-go/liverecorder/pkg/metrics"
	"github.com/xaionaro-go/liverecorder/pkg/postprocess"
	"github.com/xaionaro-go/liverecorder/pkg/recorder"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
	"github.com/xaionaro-go/liverecorder/pkg/resolution/ffprobe"
	"github.com/xaionaro-go/liverecorder/pkg/tiktok"
	xobservability "github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xpath"
)

func getTargetFlags(cmd *cobra.Command) TargetFlags {
	ctx := cmd.Context()
	flags := cmd.Flags()
	var (
		result TargetFlags
		err    error
	)
	result.URL, err = flags.GetString("url")
	assertNoError(ctx, err)
	result.User, err = flags.GetString("user")
	assertNoError(ctx, err)
	result.RoomID, err = flags.GetString("room-id")
	assertNoError(ctx, err)
	result.URLs, err = flags.GetStringSlice("urls")
	assertNoError(ctx, err)
	result.Users, err = flags.GetStringSlice("users")
	assertNoError(ctx, err)
	result.UsersFile, err = flags.GetString("users-file")
	assertNoError(ctx, err)
	result.RoomIDs, err = flags.GetStringSlice("room-ids")
	assertNoError(ctx, err)
	return result
}

func loadStore(cmd *cobra.Command) (*config.Store, *config.Config) {
	ctx := cmd.Context()
	store, err := config.NewStore(flagOrEnv(cmd, "config", EnvConfig))
	assertNoError(ctx, err)
	cfg, err := store.Load(ctx)
	assertNoError(ctx, err)
	secrets.AddSecretWords(cfg.SecretWords()...)
	return store, cfg
}

func getRecordingConfig(
	cmd *cobra.Command,
	settings *config.Config,
) (types.RecordingConfig, error) {
	ctx := cmd.Context()
	flags := cmd.Flags()

	automaticInterval, err := flags.GetUint("automatic-interval")
	assertNoError(ctx, err)
	if automaticInterval < 1 {
		return types.RecordingConfig{}, fmt.Errorf("the automatic interval must be at least 1 minute")
	}
	durationSecs, err := flags.GetUint("duration")
	assertNoError(ctx, err)
	restartOnResolutionChange, err := flags.GetBool("restart-on-resolution-change")
	assertNoError(ctx, err)
	maxConnectionFailures, err := flags.GetUint("max-connection-failures")
	assertNoError(ctx, err)

	outputDir := flagOrEnv(cmd, "output", EnvOutput)
	if outputDir == "" {
		outputDir = settings.OutputDir
	}
	if outputDir == "" {
		outputDir = "."
	}
	outputDir, err = xpath.Expand(outputDir)
	if err != nil {
		return types.RecordingConfig{}, fmt.Errorf("unable to expand the output path: %w", err)
	}

	return types.Options{
		types.OptionMode(Mode),
		types.OptionRecheckInterval(time.Duration(automaticInterval) * time.Minute),
		types.OptionMaxDuration(time.Duration(durationSecs) * time.Second),
		types.OptionOutputDir(outputDir),
		types.OptionRestartOnResolutionChange(restartOnResolutionChange),
		types.OptionMaxConsecutiveConnectionFailures(maxConnectionFailures),
	}.Config(ctx), nil
}

func getProbe(ctx context.Context, binary string) resolution.Probe {
	v, err := ffprobe.CheckAvailable(ctx, binary)
	if err != nil {
		logger.Warnf(ctx, "resolution monitoring is disabled: %v", err)
		return nil
	}
	logger.Debugf(ctx, "ffprobe version: %v", v)
	return &ffprobe.Probe{Binary: binary}
}

func getPipeline(
	cmd *cobra.Command,
	settings *config.Config,
) (*postprocess.Pipeline, error) {
	ctx := cmd.Context()
	flags := cmd.Flags()

	noRemux, err := flags.GetBool("no-remux")
	assertNoError(ctx, err)
	keepFLV, err := flags.GetBool("keep-flv")
	assertNoError(ctx, err)
	useTelegram, err := flags.GetBool("telegram")
	assertNoError(ctx, err)
	ffmpegBinary, err := flags.GetString("ffmpeg")
	assertNoError(ctx, err)

	pipeline := &postprocess.Pipeline{}
	if !noRemux {
		if _, err := ffprobe.CheckAvailable(ctx, ffmpegBinary); err != nil {
			logger.Warnf(ctx, "the recordings will not be converted to MP4: %v", err)
		} else {
			pipeline.Remuxer = &postprocess.Remuxer{
				Binary:     ffmpegBinary,
				KeepSource: keepFLV,
			}
		}
	}
	if useTelegram {
		if !settings.Telegram.IsSet() {
			return nil, fmt.Errorf("telegram.bot_token and telegram.chat_id are not set in the settings file")
		}
		pipeline.Uploader = postprocess.NewTelegram(
			settings.Telegram.BotToken.Get(),
			settings.Telegram.ChatID,
		)
	}
	if pipeline.Remuxer == nil && pipeline.Uploader == nil {
		return nil, nil
	}
	return pipeline, nil
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	xobservability.Go(ctx, func(ctx context.Context) {
		logger.Infof(ctx, "serving metrics at 'http://%s/metrics'", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf(ctx, "unable to serve metrics: %v", err)
		}
	})
	xobservability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		srv.Close()
	})
}

func record(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	targets, err := getTargetFlags(cmd).Targets()
	if err != nil {
		logger.Fatalf(ctx, "invalid targets: %v", err)
	}

	store, settings := loadStore(cmd)

	proxy := flagOrEnv(cmd, "proxy", EnvProxy)
	if proxy == "" && !settings.Proxy.IsZero() {
		proxy = settings.Proxy.Get()
	}
	secrets.AddSecretWords(config.ProxySecretWords(proxy)...)

	client, err := tiktok.New(tiktok.Config{
		Proxy:   proxy,
		Cookies: settings.CookieMap(),
	})
	assertNoError(ctx, err)

	cfg, err := getRecordingConfig(cmd, settings)
	if err != nil {
		logger.Fatal(ctx, err)
	}

	ffprobeBinary, err := cmd.Flags().GetString("ffprobe")
	assertNoError(ctx, err)

	opts := []recorder.Option{
		recorder.OptionSettingsProvider{Provider: store},
	}

	pipeline, err := getPipeline(cmd, settings)
	if err != nil {
		logger.Fatal(ctx, err)
	}
	if pipeline != nil {
		opts = append(opts, recorder.OptionPostProcessor{PostProcessor: pipeline})
	}

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	assertNoError(ctx, err)
	if metricsAddr != "" {
		m := metrics.New()
		serveMetrics(ctx, metricsAddr, m)
		opts = append(opts, recorder.OptionMetrics{Metrics: m})
	}

	o, err := recorder.New(ctx, client, getProbe(ctx, ffprobeBinary), cfg, targets, opts...)
	if err != nil {
		logger.Fatal(ctx, err)
	}

	signalCh := shutdownOnSignal(ctx, o)
	defer stopSignalHandler(signalCh)

	summary := o.Run(ctx)
	fmt.Fprintf(os.Stdout, "%s\n", summary)

	if pipeline != nil {
		logger.Infof(ctx, "waiting for the post-processing to finish")
		if err := pipeline.Wait(ctx); err != nil {
			logger.Errorf(ctx, "post-processing was not finished: %v", err)
		}
	}
}
