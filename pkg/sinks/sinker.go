package sinks

import (
	"github.com/ApollusEHS-OSS/mantis/pkg/forward"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
)

// Sinker is a sink destination wrapped together with the forwarder that
// feeds it. The buffer writer side is what the forwarder retries against.
type Sinker interface {
	isb.BufferWriter
	forward.StarterStopper
}
