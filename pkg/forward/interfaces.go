/*
Copyright 2022 The Mantis Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package forward holds the contracts shared by the source side and the
// sink side forwarders.
package forward

// StarterStopper starts the processing and allows a graceful or a forceful
// stop.
type StarterStopper interface {
	// Start returns a channel that is closed once the processing has fully
	// stopped and all resources are released.
	Start() <-chan struct{}
	// Stop initiates a graceful shutdown; in-flight work is drained.
	Stop()
	// ForceStop abandons in-flight work and shuts down as fast as possible.
	ForceStop()
}
