package commands

import (
	"context"
	"os"
	"os/user"
	"strings"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	errmonsentry "github.com/facebookincubator/go-belt/tool/experimental/errmon/implementation/sentry"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	prometheusadapter "github.com/facebookincubator/go-belt/tool/experimental/metrics/implementation/prometheus"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/xaionaro-go/liverecorder/pkg/observability"
)

const AppName = "liverecorder"

// secrets is filled by the commands as soon as they learn a secret value
// (from the settings or the flags).
var secrets = observability.NewStaticSecretsProvider()

// InitContext builds the base context with the logger. The level is
// changed later, when the flags are parsed.
func InitContext(ctx context.Context) context.Context {
	observability.InstallCallerPCFilter()
	observability.LogLevelFilter.SetLevel(LoggerLevel)

	ctx = metrics.CtxWithMetrics(ctx, prometheusadapter.Default())

	ll := xlogrus.DefaultLogrusLogger()
	ll.Formatter.(*logrus.TextFormatter).ForceColors = true
	l := xlogrus.New(ll).WithLevel(logger.LevelTrace).WithPreHooks(
		observability.NewSecretValuesFilter(secrets),
		&observability.LogLevelFilter,
	)
	ctx = logger.CtxWithLogger(ctx, l)

	ctx = belt.WithField(ctx, "program", AppName)
	if hostname, err := os.Hostname(); err == nil {
		ctx = belt.WithField(ctx, "hostname", strings.ToLower(hostname))
	}
	ctx = belt.WithField(ctx, "pid", os.Getpid())
	if u, err := user.Current(); err == nil {
		ctx = belt.WithField(ctx, "user", u.Username)
	}

	setDefaultLogger(ctx)
	return ctx
}

func setDefaultLogger(ctx context.Context) {
	l := logger.FromCtx(ctx)
	logger.Default = func() logger.Logger {
		return l
	}
}

func withSentry(ctx context.Context, dsn string) context.Context {
	if dsn == "" {
		return ctx
	}
	logger.Infof(ctx, "setting up Sentry at DSN '%s'", dsn)
	sentryClient, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: dsn,
	})
	if err != nil {
		logger.Errorf(ctx, "unable to initialize Sentry: %v", err)
		return ctx
	}
	sentryErrorMonitor := errmonsentry.New(sentryClient)
	ctx = errmon.CtxWithErrorMonitor(ctx, sentryErrorMonitor)
	l := logger.FromCtx(ctx).WithPreHooks(observability.NewErrorMonitorLoggerHook(
		ctx,
		sentryErrorMonitor,
	))
	ctx = logger.CtxWithLogger(ctx, l)
	setDefaultLogger(ctx)
	return ctx
}
