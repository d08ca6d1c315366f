// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"clearclause/internal/resilience"

	"github.com/hashicorp/go-hclog"
)

const maxResponseBytes = 16 << 20

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Entities []Entity `json:"entities"`
}

// Remote calls an HTTP recognizer service.
//
//	POST {endpoint}/detect  {"text": "..."}  ->  {"entities": [{"label","start","end"}]}
//	GET  {endpoint}/health                   ->  2xx when ready
type Remote struct {
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	logger   hclog.Logger
}

// RemoteConfig configures a Remote recognizer.
type RemoteConfig struct {
	Endpoint   string
	Timeout    time.Duration
	MaxRetries int
	Client     *http.Client
}

// NewRemote builds a Remote recognizer and checks that the service is
// healthy. A failed health check wraps ErrRecognizerUnavailable.
func NewRemote(ctx context.Context, cfg RemoteConfig, logger hclog.Logger) (*Remote, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrRecognizerUnavailable)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	r := &Remote{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   client,
		retry:    resilience.RecognizerRetryConfig(cfg.MaxRetries),
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("recognizer")),
		logger:   logger.Named("remote"),
	}
	r.retry.OnRetry = func(attempt int, err error) {
		r.logger.Warn("retrying recognizer request", "attempt", attempt, "error", err)
	}

	if err := r.health(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRecognizerUnavailable, r.endpoint, err)
	}
	r.logger.Debug("remote recognizer ready", "endpoint", r.endpoint)
	return r, nil
}

func (r *Remote) health(ctx context.Context) error {
	url := r.endpoint + "/health"
	return resilience.RetryWithBackoff(ctx, r.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return resilience.NewPermanentError("invalid recognizer endpoint", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &resilience.StatusError{URL: url, StatusCode: resp.StatusCode}
		}
		return nil
	})
}

// Detect implements Recognizer.
func (r *Remote) Detect(text string) ([]Entity, error) {
	return r.DetectContext(context.Background(), text)
}

// DetectContext sends text to the service and validates the returned
// offsets against it.
func (r *Remote) DetectContext(ctx context.Context, text string) ([]Entity, error) {
	if text == "" {
		return nil, nil
	}

	body, err := json.Marshal(detectRequest{Text: text})
	if err != nil {
		return nil, err
	}
	url := r.endpoint + "/detect"

	var out detectResponse
	err = resilience.RetryWithCircuitBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return resilience.NewPermanentError("invalid recognizer endpoint", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &resilience.StatusError{URL: url, StatusCode: resp.StatusCode}
		}

		out = detectResponse{}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
			return resilience.NewPermanentError("malformed recognizer response", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recognizer request failed: %w", err)
	}

	if err := Validate(out.Entities, utf8.RuneCountInString(text)); err != nil {
		return nil, err
	}
	return out.Entities, nil
}
