package postprocess

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/subprocess"
)

const (
	DefaultFFmpegBinary = "ffmpeg"

	flvSuffix = "_flv.mp4"
)

// Remuxer copies the streams of an FLV recording into an MP4 container
// without re-encoding.
type Remuxer struct {
	Binary string

	// KeepSource leaves the original recording in place.
	KeepSource bool
}

func (r *Remuxer) binary() string {
	if r.Binary == "" {
		return DefaultFFmpegBinary
	}
	return r.Binary
}

// RemuxedPath is the path of the MP4 made from the recording at path.
func RemuxedPath(path string) string {
	if strings.HasSuffix(path, flvSuffix) {
		return strings.TrimSuffix(path, flvSuffix) + ".mp4"
	}
	return path + ".mp4"
}

func remuxArgs(in, out string) []string {
	return []string{
		"-hide_banner",
		"-i", in,
		"-c", "copy",
		"-y",
		out,
	}
}

func (r *Remuxer) Remux(ctx context.Context, path string) (_ string, _err error) {
	out := RemuxedPath(path)
	logger.Debugf(ctx, "Remux(ctx, '%s'): -> '%s'", path, out)
	defer func() { logger.Debugf(ctx, "/Remux(ctx, '%s'): %v", path, _err) }()

	if _, err := subprocess.Run(ctx, r.binary(), remuxArgs(path, out)...); err != nil {
		return "", err
	}
	if r.KeepSource {
		return out, nil
	}
	if err := os.Remove(path); err != nil {
		return out, fmt.Errorf("unable to remove '%s': %w", path, err)
	}
	return out, nil
}
