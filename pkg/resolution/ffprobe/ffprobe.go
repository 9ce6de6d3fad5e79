// Package ffprobe implements resolution.Probe by running the ffprobe binary.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/resolution"
	"github.com/xaionaro-go/liverecorder/pkg/subprocess"
)

const (
	DefaultBinary = "ffprobe"

	analyzeDurationMicroseconds = "1000000"
	probeSizeBytes              = "1000000"
)

type Probe struct {
	Binary string
}

var _ resolution.Probe = (*Probe)(nil)

func New() *Probe {
	return &Probe{
		Binary: DefaultBinary,
	}
}

func (p *Probe) binary() string {
	if p.Binary == "" {
		return DefaultBinary
	}
	return p.Binary
}

func probeArgs(url string) []string {
	return []string{
		"-v", "quiet",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json=compact=1",
		"-analyzeduration", analyzeDurationMicroseconds,
		"-probesize", probeSizeBytes,
		url,
	}
}

func (p *Probe) Probe(
	ctx context.Context,
	url string,
	timeout time.Duration,
) (_ret resolution.Resolution, _err error) {
	logger.Tracef(ctx, "Probe(ctx, '%s', %v)", url, timeout)
	defer func() { logger.Tracef(ctx, "/Probe(ctx, '%s', %v): %v %v", url, timeout, _ret, _err) }()

	if timeout > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, timeout)
		defer cancelFn()
	}

	stdout, err := subprocess.Run(ctx, p.binary(), probeArgs(url)...)
	if err != nil {
		if ctx.Err() != nil {
			return resolution.Resolution{}, fmt.Errorf("ffprobe did not finish in time: %w", ctx.Err())
		}
		return resolution.Resolution{}, err
	}
	return ParseOutput(stdout)
}

type probeOutput struct {
	Streams []struct {
		Width  uint `json:"width"`
		Height uint `json:"height"`
	} `json:"streams"`
}

// ParseOutput parses the JSON printed by ffprobe for
// "-show_entries stream=width,height".
func ParseOutput(b []byte) (resolution.Resolution, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return resolution.Resolution{}, fmt.Errorf("unable to parse the ffprobe output '%s': %w", b, err)
	}
	if len(out.Streams) == 0 {
		return resolution.Resolution{}, fmt.Errorf("ffprobe found no video streams")
	}
	res := resolution.Resolution{
		Width:  out.Streams[0].Width,
		Height: out.Streams[0].Height,
	}
	if res.Width == 0 || res.Height == 0 {
		return resolution.Resolution{}, fmt.Errorf("ffprobe returned an incomplete resolution %s", res)
	}
	return res, nil
}
