package metrics

import "context"

// HealthChecker is the interface to check if a piece of the pipeline is connected and ready to use
type HealthChecker interface {
	// IsHealthy checks if the pipeline piece is healthy
	IsHealthy(ctx context.Context) error
}
