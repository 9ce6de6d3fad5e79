package commands

import (
	"context"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/xaionaro-go/liverecorder/pkg/config"
	"github.com/xaionaro-go/liverecorder/pkg/observability"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

const (
	EnvConfig = "LIVERECORDER_CONFIG"
	EnvOutput = "LIVERECORDER_OUTPUT"
	EnvProxy  = "LIVERECORDER_PROXY"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use:           AppName,
		Short:         "records TikTok live streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			observability.LogLevelFilter.SetLevel(LoggerLevel)

			sentryDSN, err := cmd.Flags().GetString("sentry-dsn")
			if err != nil {
				logger.Errorf(ctx, "unable to get the value of the flag 'sentry-dsn': %v", err)
			}
			ctx = withSentry(ctx, sentryDSN)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			logger.Debug(ctx, "end")
		},
	}

	Record = &cobra.Command{
		Use:   "record",
		Short: "record one or more live streams",
		Args:  cobra.ExactArgs(0),
		Run:   record,
	}

	Config = &cobra.Command{
		Use:   "config",
		Short: "view or change the persisted settings",
	}

	ConfigShow = &cobra.Command{
		Use:  "show",
		Args: cobra.ExactArgs(0),
		Run:  configShow,
	}

	ConfigResolution = &cobra.Command{
		Use:   "resolution",
		Short: "restart the recording when the stream resolution changes",
	}

	ConfigResolutionEnable = &cobra.Command{
		Use:  "enable",
		Args: cobra.ExactArgs(0),
		Run:  configResolutionSetEnabled(true),
	}

	ConfigResolutionDisable = &cobra.Command{
		Use:  "disable",
		Args: cobra.ExactArgs(0),
		Run:  configResolutionSetEnabled(false),
	}

	ConfigResolutionInterval = &cobra.Command{
		Use:  "interval SECONDS",
		Args: cobra.ExactArgs(1),
		Run:  configResolutionInterval,
	}

	Probe = &cobra.Command{
		Use:   "probe URL",
		Short: "print the resolution of a stream",
		Args:  cobra.ExactArgs(1),
		Run:   probe,
	}

	Version = &cobra.Command{
		Use:  "version",
		Args: cobra.ExactArgs(0),
		Run:  printVersion,
	}

	LoggerLevel = logger.LevelInfo
	Mode        = types.ModeManual
)

func init() {
	Root.AddCommand(Record)
	Root.AddCommand(Config)
	Config.AddCommand(ConfigShow)
	Config.AddCommand(ConfigResolution)
	ConfigResolution.AddCommand(ConfigResolutionEnable)
	ConfigResolution.AddCommand(ConfigResolutionDisable)
	ConfigResolution.AddCommand(ConfigResolutionInterval)
	Root.AddCommand(Probe)
	Root.AddCommand(Version)

	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "logging level (trace, debug, info, warning, error)")
	Root.PersistentFlags().String("config", "", "the path to the settings file (default: $"+EnvConfig+" or "+config.DefaultPath+")")
	Root.PersistentFlags().String("sentry-dsn", "", "send the errors to the Sentry at this DSN")

	Record.Flags().String("url", "", "the URL of the live stream (https://www.tiktok.com/@user/live)")
	Record.Flags().String("user", "", "the user name")
	Record.Flags().String("room-id", "", "the room ID")
	Record.Flags().StringSlice("urls", nil, "URLs of live streams to record in parallel")
	Record.Flags().StringSlice("users", nil, "user names to record in parallel")
	Record.Flags().String("users-file", "", "a file with a user name per line")
	Record.Flags().StringSlice("room-ids", nil, "room IDs to record in parallel")
	Record.Flags().Var(&Mode, "mode", "manual (record if live now) or automatic (wait for the streams to go live)")
	Record.Flags().Uint("automatic-interval", 5, "minutes between the checks in the automatic mode")
	Record.Flags().String("proxy", "", "HTTP proxy for the API requests (default: $"+EnvProxy+")")
	Record.Flags().String("output", "", "the directory for the recordings (default: $"+EnvOutput+" or the current directory)")
	Record.Flags().Uint("duration", 0, "split the recordings after this many seconds (0: unlimited)")
	Record.Flags().Bool("telegram", false, "upload the recordings to Telegram (configured in the settings file)")
	Record.Flags().Bool("no-remux", false, "keep the raw FLV recordings, do not convert them to MP4")
	Record.Flags().Bool("keep-flv", false, "keep the raw FLV recordings after converting them")
	Record.Flags().Bool("restart-on-resolution-change", false, "start a new file when the stream resolution changes")
	Record.Flags().Uint("max-connection-failures", 0, "give up a stream after this many consecutive connection failures (0: never)")
	Record.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (like 'localhost:9100')")
	Record.Flags().String("ffmpeg", "ffmpeg", "the ffmpeg binary")
	Record.Flags().String("ffprobe", "ffprobe", "the ffprobe binary")

	ConfigShow.Flags().Bool("debug", false, "dump the parsed settings structure instead of YAML")
	for _, cmd := range []*cobra.Command{ConfigResolutionEnable, ConfigResolutionDisable, ConfigResolutionInterval} {
		cmd.Flags().String("user", "", "apply to this user only")
		cmd.Flags().String("room", "", "apply to this room only")
	}
	ConfigResolutionEnable.MarkFlagsMutuallyExclusive("user", "room")
	ConfigResolutionDisable.MarkFlagsMutuallyExclusive("user", "room")
	ConfigResolutionInterval.MarkFlagsMutuallyExclusive("user", "room")

	Probe.Flags().String("ffprobe", "ffprobe", "the ffprobe binary")
	Probe.Flags().Duration("timeout", 10*time.Second, "the probe timeout")
}

func assertNoError(ctx context.Context, err error) {
	if err != nil {
		logger.Panic(ctx, err)
	}
}

// flagOrEnv returns the value of the flag, or of the environment variable
// if the flag is not set.
func flagOrEnv(cmd *cobra.Command, flagName string, envName string) string {
	v, err := cmd.Flags().GetString(flagName)
	assertNoError(cmd.Context(), err)
	if v != "" {
		return v
	}
	return os.Getenv(envName)
}
