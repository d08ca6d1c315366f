// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recognizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clearclause/internal/resilience"

	"github.com/hashicorp/go-hclog"
)

// Backend names accepted in configuration.
const (
	BackendBuiltin = "builtin"
	BackendHTTP    = "http"
)

// Options selects and configures a recognizer backend.
type Options struct {
	Backend    string
	ModelPath  string
	ModelURL   string
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
}

// New constructs a recognizer for opts. It does not cache the result.
func New(ctx context.Context, opts Options, logger hclog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("recognizer")

	switch opts.Backend {
	case "", BackendBuiltin:
		model, err := LoadModel(ctx, ModelSource{
			Path:  opts.ModelPath,
			URL:   opts.ModelURL,
			Retry: resilience.DefaultRetryConfig(),
		}, logger)
		if err != nil {
			return nil, err
		}
		b, err := NewBuiltin(model)
		if err != nil {
			return nil, fmt.Errorf("%w: compiling model %s: %v", ErrModelUnavailable, model.Name, err)
		}
		logger.Info("builtin recognizer ready", "model", model.Name, "version", model.Version)
		return b, nil

	case BackendHTTP:
		return NewRemote(ctx, RemoteConfig{
			Endpoint:   opts.Endpoint,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", opts.Backend)
	}
}

var (
	sharedOnce sync.Once
	sharedRec  Recognizer
	sharedErr  error
)

// Shared returns the process-wide recognizer, constructing it on first use.
// Later calls return the first result, including a construction error;
// options passed after the first call are ignored.
func Shared(ctx context.Context, opts Options, logger hclog.Logger) (Recognizer, error) {
	sharedOnce.Do(func() {
		sharedRec, sharedErr = New(ctx, opts, logger)
	})
	return sharedRec, sharedErr
}

// resetShared is used by tests.
func resetShared() {
	sharedOnce = sync.Once{}
	sharedRec = nil
	sharedErr = nil
}
