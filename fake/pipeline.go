// File: fake/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import "github.com/momentics/hioload-channel/api"

// Pipeline records lifecycle notifications in arrival order.
type Pipeline struct {
	Events          []string
	HandlersRemoved int
}

// NewPipeline returns an empty recorder.
func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) FireChannelRegistered()   { p.Events = append(p.Events, "registered") }
func (p *Pipeline) FireChannelActive()       { p.Events = append(p.Events, "active") }
func (p *Pipeline) FireChannelInactive()     { p.Events = append(p.Events, "inactive") }
func (p *Pipeline) FireChannelUnregistered() { p.Events = append(p.Events, "unregistered") }

func (p *Pipeline) RemoveHandlers() {
	p.HandlersRemoved++
	p.Events = append(p.Events, "removeHandlers")
}

var _ api.Pipeline = (*Pipeline)(nil)
