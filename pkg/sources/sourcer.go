package sources

import (
	"github.com/ApollusEHS-OSS/mantis/pkg/forward"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
)

// Sourcer interface provides an isb.BufferReader abstraction over the underlying data source.
// This is intended to be consumed by a connector like sources/forward.
type Sourcer interface {
	isb.BufferReader
	forward.StarterStopper
}
