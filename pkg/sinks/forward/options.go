package forward

import (
	"fmt"

	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/ApollusEHS-OSS/mantis/pkg/shared/logging"
	"github.com/ApollusEHS-OSS/mantis/pkg/shared/util"
)

// options tune the sink forwarder.
type options struct {
	// readBatchSize caps how many summaries one chunk reads
	readBatchSize int64
	// retryBackoff bounds the sink write retries; exhausting it is fatal
	retryBackoff wait.Backoff
	logger       *zap.SugaredLogger
}

type Option func(*options) error

func DefaultOptions() *options {
	return &options{
		readBatchSize: 64,
		retryBackoff:  util.DefaultRetryBackoff,
		logger:        logging.NewLogger(),
	}
}

// WithReadBatchSize caps how many summaries one chunk reads.
func WithReadBatchSize(f int64) Option {
	return func(o *options) error {
		if f <= 0 {
			return fmt.Errorf("invalid read batch size %d", f)
		}
		o.readBatchSize = f
		return nil
	}
}

// WithRetryBackoff sets the bounded backoff for sink writes.
func WithRetryBackoff(b wait.Backoff) Option {
	return func(o *options) error {
		o.retryBackoff = b
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}
