// Package control runs the decision loop: one frame in, one command out,
// with a deadline that turns silence into a hold or a stop.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/engine"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// ErrLinkClosed is returned by Run when the robot link stops delivering
// frames for good.
var ErrLinkClosed = errors.New("control: robot link closed")

// Link carries frames from the robot and commands back to it.
type Link interface {
	Frames() <-chan sensor.Frame
	Send(ctx context.Context, d action.Decision) error
}

// Decider produces one decision per cycle. *engine.Engine implements it.
type Decider interface {
	Step(sensor.Frame) action.Decision
	Missed() action.Decision
	Status() engine.Status
}

// Options configures a Loop.
type Options struct {
	// FrameTimeout is how long to wait for a frame before the cycle counts
	// as missed.
	FrameTimeout time.Duration
	// SendTimeout bounds each command write.
	SendTimeout time.Duration
	// Publish, if set, receives engine state after every cycle. It runs on
	// the loop goroutine and must not block.
	Publish func(engine.Status)
}

// DefaultOptions returns the standard cycle deadlines.
func DefaultOptions() Options {
	return Options{
		FrameTimeout: 150 * time.Millisecond,
		SendTimeout:  100 * time.Millisecond,
	}
}

// Stats counts loop activity.
type Stats struct {
	Session    string `json:"session"`
	Cycles     uint64 `json:"cycles"`
	Missed     uint64 `json:"missed"`
	SendErrors uint64 `json:"send_errors"`
}

// Loop owns the engine for its lifetime. Only the Run goroutine touches it.
type Loop struct {
	dec     Decider
	link    Link
	opts    Options
	session string

	cycles     atomic.Uint64
	missed     atomic.Uint64
	sendErrors atomic.Uint64

	logger *slog.Logger
}

// New creates a loop driving dec from link.
func New(dec Decider, link Link, opts Options) *Loop {
	def := DefaultOptions()
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = def.FrameTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = def.SendTimeout
	}
	session := uuid.NewString()
	return &Loop{
		dec:     dec,
		link:    link,
		opts:    opts,
		session: session,
		logger:  log.Component("control").With("session", session),
	}
}

// Run cycles until ctx is cancelled or the link closes. On the way out it
// sends a final STOP.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("control loop started", "frame_timeout", l.opts.FrameTimeout)
	defer l.stop()

	frames := l.link.Frames()
	timer := time.NewTimer(l.opts.FrameTimeout)
	defer timer.Stop()

	for {
		var d action.Decision
		select {
		case <-ctx.Done():
			return nil

		case f, ok := <-frames:
			if !ok {
				l.logger.Warn("robot link closed")
				return ErrLinkClosed
			}
			d = l.dec.Step(f)

		case <-timer.C:
			l.missed.Add(1)
			d = l.dec.Missed()
		}
		timer.Reset(l.opts.FrameTimeout)

		l.cycles.Add(1)
		l.send(ctx, d)
		if l.opts.Publish != nil {
			l.opts.Publish(l.dec.Status())
		}
	}
}

func (l *Loop) send(ctx context.Context, d action.Decision) {
	sendCtx, cancel := context.WithTimeout(ctx, l.opts.SendTimeout)
	defer cancel()
	if err := l.link.Send(sendCtx, d); err != nil {
		// first failure, then sampled
		if l.sendErrors.Add(1) == 1 || l.cycles.Load()%100 == 0 {
			l.logger.Warn("command not delivered", "action", d.Action, "error", err)
		}
	}
}

func (l *Loop) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.SendTimeout)
	defer cancel()
	if err := l.link.Send(ctx, action.StopDecision(action.SourceSafety, "SHUTDOWN")); err != nil {
		l.logger.Debug("final stop not delivered", "error", err)
	}
	st := l.Stats()
	l.logger.Info("control loop stopped", "cycles", st.Cycles, "missed", st.Missed, "send_errors", st.SendErrors)
}

// Stats returns loop counters. Safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Session:    l.session,
		Cycles:     l.cycles.Load(),
		Missed:     l.missed.Load(),
		SendErrors: l.sendErrors.Load(),
	}
}
