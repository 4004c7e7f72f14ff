// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package pipeline_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-channel/api"
	"github.com/momentics/hioload-channel/pipeline"
)

type stubChannel struct{ id uuid.UUID }

func (s *stubChannel) ID() uuid.UUID { return s.id }

type recordingHandler struct {
	name string
	log  *[]string
}

func (h *recordingHandler) Handle(data any) error {
	switch data.(type) {
	case api.RegisteredEvent:
		*h.log = append(*h.log, h.name+":registered")
	case api.ActiveEvent:
		*h.log = append(*h.log, h.name+":active")
	case api.InactiveEvent:
		*h.log = append(*h.log, h.name+":inactive")
	case api.UnregisteredEvent:
		*h.log = append(*h.log, h.name+":unregistered")
	default:
		*h.log = append(*h.log, h.name+":read")
	}
	return nil
}

func TestEventsDispatchInHandlerOrder(t *testing.T) {
	var log []string
	p := pipeline.New()
	p.Bind(&stubChannel{id: uuid.New()})
	p.AddHandler(&recordingHandler{name: "a", log: &log})
	p.AddHandler(&recordingHandler{name: "b", log: &log})

	p.FireChannelRegistered()
	p.FireChannelActive()

	require.Equal(t,
		[]string{"a:registered", "b:registered", "a:active", "b:active"}, log)
}

func TestRemoveHandlersStopsDispatch(t *testing.T) {
	var log []string
	p := pipeline.New()
	p.Bind(&stubChannel{id: uuid.New()})
	p.AddHandler(&recordingHandler{name: "a", log: &log})
	require.Equal(t, 1, p.NumHandlers())

	p.RemoveHandlers()
	require.Zero(t, p.NumHandlers())

	p.FireChannelInactive()
	require.Empty(t, log)
}

func TestFireReadDeliversPayload(t *testing.T) {
	var log []string
	p := pipeline.New()
	p.Bind(&stubChannel{id: uuid.New()})
	p.AddHandler(&recordingHandler{name: "a", log: &log})

	p.FireRead([]byte("payload"))
	require.Equal(t, []string{"a:read"}, log)
}
