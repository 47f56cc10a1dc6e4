package sources

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ApollusEHS-OSS/mantis/pkg/forward/applier"
	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
	"github.com/ApollusEHS-OSS/mantis/pkg/job"
	"github.com/ApollusEHS-OSS/mantis/pkg/sources/generator"
	httpsource "github.com/ApollusEHS-OSS/mantis/pkg/sources/http"
	natssource "github.com/ApollusEHS-OSS/mantis/pkg/sources/nats"
)

// New builds the source the job asks for, writing its records to toBuffer
// through the transformer; it takes in the logger from the parent.
func New(j *job.Job, toBuffer isb.BufferWriter, transformer applier.TransformApplier, logger *zap.SugaredLogger) (Sourcer, error) {
	source := j.Source
	if source == nil {
		return nil, fmt.Errorf("invalid source spec")
	}
	if x := source.Generator; x != nil {
		return generator.NewMemGen(j, toBuffer, transformer, generator.WithLogger(logger))
	} else if x := source.HTTP; x != nil {
		return httpsource.New(j, toBuffer, transformer, httpsource.WithLogger(logger))
	} else if x := source.Nats; x != nil {
		return natssource.New(j, toBuffer, transformer, natssource.WithLogger(logger))
	}
	return nil, fmt.Errorf("invalid source spec")
}
