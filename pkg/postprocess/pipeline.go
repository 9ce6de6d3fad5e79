// Package postprocess handles the finished recordings: it remuxes them
// into a proper MP4 and optionally uploads them to Telegram.
package postprocess

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/liverecorder/pkg/recorder/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Uploader sends a finished file somewhere.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// Pipeline processes every artifact in its own goroutine. Failures are
// logged and never reach the recorder.
type Pipeline struct {
	Remuxer  *Remuxer
	Uploader Uploader

	locker  xsync.Mutex
	pending int
	// busyCh is closed (and reset) when the last pending job is finished.
	busyCh chan struct{}
}

var _ types.PostProcessor = (*Pipeline)(nil)

// HandleArtifact starts the processing and returns immediately. The
// processing is not interrupted by the cancellation of ctx.
func (p *Pipeline) HandleArtifact(ctx context.Context, path string) {
	logger.Debugf(ctx, "HandleArtifact(ctx, '%s')", path)
	p.jobStarted(ctx)
	observability.Go(xcontext.DetachDone(ctx), func(ctx context.Context) {
		defer p.jobFinished(ctx)
		if err := p.process(ctx, path); err != nil {
			logger.Errorf(ctx, "unable to post-process '%s': %v", path, err)
		}
	})
}

func (p *Pipeline) process(ctx context.Context, path string) error {
	result := path
	if p.Remuxer != nil {
		logger.Infof(ctx, "converting '%s' to MP4", path)
		out, err := p.Remuxer.Remux(ctx, path)
		if err != nil {
			return fmt.Errorf("unable to remux: %w", err)
		}
		logger.Infof(ctx, "converted to '%s'", out)
		result = out
	}

	if p.Uploader != nil {
		logger.Infof(ctx, "uploading '%s'", result)
		if err := p.Uploader.Upload(ctx, result); err != nil {
			return fmt.Errorf("unable to upload '%s': %w", result, err)
		}
		logger.Infof(ctx, "uploaded '%s'", result)
	}
	return nil
}

func (p *Pipeline) jobStarted(ctx context.Context) {
	p.locker.Do(ctx, func() {
		if p.pending == 0 {
			p.busyCh = make(chan struct{})
		}
		p.pending++
	})
}

func (p *Pipeline) jobFinished(ctx context.Context) {
	p.locker.Do(ctx, func() {
		p.pending--
		if p.pending == 0 {
			close(p.busyCh)
			p.busyCh = nil
		}
	})
}

// Wait blocks until there are no pending jobs or ctx is done. Jobs may
// be started concurrently with Wait; those started before the pending
// ones finish are waited for as well.
func (p *Pipeline) Wait(ctx context.Context) error {
	for {
		busyCh := xsync.DoR1(ctx, &p.locker, func() chan struct{} {
			return p.busyCh
		})
		if busyCh == nil {
			return nil
		}
		select {
		case <-busyCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
