package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/liverecorder/pkg/config"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
)

func newRecordCommand(t *testing.T, flags map[string]string) *cobra.Command {
	cmd := &cobra.Command{Use: "record"}
	cmd.Flags().AddFlagSet(Record.Flags())
	cmd.Flags().AddFlagSet(Root.PersistentFlags())
	for k, v := range flags {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if !f.Changed {
				return
			}
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		Mode = types.ModeManual
	})
	return cmd
}

func TestFlagOrEnv(t *testing.T) {
	t.Setenv(EnvOutput, "/from/env")

	cmd := newRecordCommand(t, nil)
	assert.Equal(t, "/from/env", flagOrEnv(cmd, "output", EnvOutput))

	cmd = newRecordCommand(t, map[string]string{"output": "/from/flag"})
	assert.Equal(t, "/from/flag", flagOrEnv(cmd, "output", EnvOutput))
}

func TestGetRecordingConfig(t *testing.T) {
	t.Setenv(EnvOutput, "")
	dir := t.TempDir()
	settings := config.NewConfig()
	settings.OutputDir = dir

	cmd := newRecordCommand(t, map[string]string{
		"mode":                         "automatic",
		"automatic-interval":           "2",
		"duration":                     "600",
		"restart-on-resolution-change": "true",
		"max-connection-failures":      "3",
	})
	cfg, err := getRecordingConfig(cmd, &settings)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, types.ModeAutomatic, cfg.Mode)
	assert.Equal(t, 2*time.Minute, cfg.RecheckInterval)
	assert.Equal(t, 10*time.Minute, cfg.MaxDuration)
	assert.Equal(t, dir, cfg.OutputDir)
	assert.True(t, cfg.RestartOnResolutionChange)
	assert.Equal(t, uint(3), cfg.MaxConsecutiveConnectionFailures)

	cmd = newRecordCommand(t, map[string]string{
		"automatic-interval": "0",
		"output":             filepath.Join(dir, "out"),
	})
	_, err = getRecordingConfig(cmd, &settings)
	assert.Error(t, err)
}
