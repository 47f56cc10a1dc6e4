package util

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// DefaultRetryBackoff is the bounded backoff used for sink writes; exhausting
// it is fatal for the pipeline instance.
var DefaultRetryBackoff = wait.Backoff{
	Steps:    10,
	Duration: 5 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}
