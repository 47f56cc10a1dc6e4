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

// Package applier adapts the record transformer so the source forwarder
// can invoke it without knowing the concrete implementation.
package applier

import (
	"context"

	"github.com/ApollusEHS-OSS/mantis/pkg/isb"
)

// TransformApplier applies the transformation on a read message and
// returns the messages to forward downstream. Returning an empty slice
// drops the message.
type TransformApplier interface {
	ApplyTransform(ctx context.Context, message *isb.ReadMessage) ([]*isb.Message, error)
}

// ApplyTransformFunc utility to define a TransformApplier from a function.
type ApplyTransformFunc func(ctx context.Context, message *isb.ReadMessage) ([]*isb.Message, error)

func (f ApplyTransformFunc) ApplyTransform(ctx context.Context, message *isb.ReadMessage) ([]*isb.Message, error) {
	return f(ctx, message)
}

var (
	// Terminal TransformApplier that drops everything, used in tests.
	Terminal = ApplyTransformFunc(func(ctx context.Context, message *isb.ReadMessage) ([]*isb.Message, error) {
		return nil, nil
	})
	// Identity TransformApplier that forwards the message unchanged, used
	// in tests.
	Identity = ApplyTransformFunc(func(ctx context.Context, message *isb.ReadMessage) ([]*isb.Message, error) {
		return []*isb.Message{&message.Message}, nil
	})
)
