// File: fake/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scriptable state-managed channel for lifecycle tests.

package fake

import (
	"github.com/google/uuid"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/channel"
	"github.com/momentics/hioload-channel/core/completion"
)

// Substate is the empty active substate used by fake channels.
type Substate struct{}

// Channel implements channel.StateManaged with recording hooks. Each
// hook appends its name to Calls; optional funcs let a test script
// behavior such as completing activation.
type Channel struct {
	id       uuid.UUID
	state    *channel.ChannelState[Substate]
	loop     *Loop
	pipeline *Pipeline
	closeP   *completion.Handle
	actType  api.ActivationType

	Calls []string

	// OnBeginActivating, when set, runs instead of only recording.
	OnBeginActivating func(ep api.Endpoint, done *completion.Handle)
	// OnDoHalfClose, when set, handles output half-close requests.
	OnDoHalfClose func(cause error, done *completion.Handle)

	// LastEndpoint is the endpoint the activation hook received.
	LastEndpoint api.Endpoint
	// LastCloseCause is the error DoClose received.
	LastCloseCause error
}

// NewChannel builds a fake channel of the given activation type with
// its own fake loop and pipeline.
func NewChannel(actType api.ActivationType) *Channel {
	return &Channel{
		id:       uuid.New(),
		state:    channel.NewState[Substate](),
		loop:     NewLoop(),
		pipeline: NewPipeline(),
		closeP:   completion.New(),
		actType:  actType,
	}
}

func (c *Channel) ID() uuid.UUID                          { return c.id }
func (c *Channel) State() *channel.ChannelState[Substate] { return c.state }
func (c *Channel) EventLoop() api.EventLoop               { return c.loop }
func (c *Channel) Pipeline() api.Pipeline                 { return c.pipeline }
func (c *Channel) ClosePromise() *completion.Handle       { return c.closeP }
func (c *Channel) ActivationType() api.ActivationType     { return c.actType }

// Loop exposes the fake loop for pumping scheduled work.
func (c *Channel) Loop() *Loop { return c.loop }

// PipelineRecorder exposes the fake pipeline's recorded events.
func (c *Channel) PipelineRecorder() *Pipeline { return c.pipeline }

func (c *Channel) BeginActivating(ep api.Endpoint, done *completion.Handle) {
	c.Calls = append(c.Calls, "beginActivating")
	c.LastEndpoint = ep
	if c.OnBeginActivating != nil {
		c.OnBeginActivating(ep, done)
	}
}

func (c *Channel) AlreadyConfigured(done *completion.Handle) {
	c.Calls = append(c.Calls, "alreadyConfigured")
	done.Resolve(nil)
}

func (c *Channel) DoClose(cause error) {
	c.Calls = append(c.Calls, "doClose")
	c.LastCloseCause = cause
}

func (c *Channel) DoHalfClose(cause error, done *completion.Handle) {
	c.Calls = append(c.Calls, "doHalfClose")
	if c.OnDoHalfClose != nil {
		c.OnDoHalfClose(cause, done)
		return
	}
	done.Resolve(nil)
}

func (c *Channel) ReadIfNeeded() {
	c.Calls = append(c.Calls, "readIfNeeded")
}

var _ channel.StateManaged[Substate] = (*Channel)(nil)
