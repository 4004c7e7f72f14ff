// File: pipeline/pipeline.go
// Package pipeline provides a minimal ordered-handler implementation
// of api.Pipeline. Lifecycle events are dispatched to each handler in
// registration order; handlers have no return contract back into the
// lifecycle core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipeline

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-channel/api"
)

// Pipeline dispatches lifecycle events to an ordered handler chain.
// Owned by a single channel; mutated only on that channel's loop.
type Pipeline struct {
	ch       api.Channel
	handlers []api.Handler
	log      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates an empty, unbound pipeline. Bind attaches it to its
// channel once the channel exists; events fired before that carry a
// nil channel.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bind attaches the pipeline to the channel whose events it carries.
func (p *Pipeline) Bind(ch api.Channel) { p.ch = ch }

// AddHandler appends h to the chain.
func (p *Pipeline) AddHandler(h api.Handler) {
	p.handlers = append(p.handlers, h)
}

// NumHandlers reports the current chain length.
func (p *Pipeline) NumHandlers() int { return len(p.handlers) }

func (p *Pipeline) FireChannelRegistered() {
	p.fire(api.RegisteredEvent{Channel: p.ch})
}

func (p *Pipeline) FireChannelActive() {
	p.fire(api.ActiveEvent{Channel: p.ch})
}

func (p *Pipeline) FireChannelInactive() {
	p.fire(api.InactiveEvent{Channel: p.ch})
}

func (p *Pipeline) FireChannelUnregistered() {
	p.fire(api.UnregisteredEvent{Channel: p.ch})
}

// RemoveHandlers empties the chain. Fired once, on the deferred
// teardown turn after the channel fully closed.
func (p *Pipeline) RemoveHandlers() {
	p.handlers = nil
}

// FireRead delivers one inbound payload to the chain.
func (p *Pipeline) FireRead(data any) {
	p.fire(data)
}

func (p *Pipeline) fire(ev any) {
	for _, h := range p.handlers {
		if err := h.Handle(ev); err != nil {
			fields := []zap.Field{zap.Error(err)}
			if p.ch != nil {
				fields = append(fields, zap.Stringer("channel", p.ch.ID()))
			}
			p.log.Warn("pipeline handler failed", fields...)
		}
	}
}

var _ api.Pipeline = (*Pipeline)(nil)
