// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recognizer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"clearclause/internal/resilience"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Embedded default model artifact
//
//go:embed data/model.yaml
var defaultModelYAML []byte

// maxModelBytes bounds a fetched model artifact.
const maxModelBytes = 32 << 20

// Model is the gazetteer artifact driving the builtin recognizer.
type Model struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Language    string   `yaml:"language"`
	Titles      []string `yaml:"titles"`
	CommonWords []string `yaml:"common_words"`
	FirstNames  []string `yaml:"first_names"`
	LastNames   []string `yaml:"last_names"`
	OrgSuffixes []string `yaml:"org_suffixes"`
	Places      []string `yaml:"places"`
	Months      []string `yaml:"months"`
}

// ParseModel decodes and validates a model artifact.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing model: %w", err)
	}
	if len(m.FirstNames) == 0 {
		return nil, errors.New("model has no first_names")
	}
	if len(m.OrgSuffixes) == 0 {
		return nil, errors.New("model has no org_suffixes")
	}
	if len(m.Places) == 0 {
		return nil, errors.New("model has no places")
	}
	if len(m.Months) == 0 {
		return nil, errors.New("model has no months")
	}
	return &m, nil
}

// DefaultModel returns the model compiled into the binary.
func DefaultModel() (*Model, error) {
	return ParseModel(defaultModelYAML)
}

// ModelSource describes where the model artifact lives.
type ModelSource struct {
	// Path of the local artifact. Empty selects the embedded model.
	Path string

	// URL used once when Path does not exist.
	URL string

	Retry  resilience.RetryConfig
	Client *http.Client
}

// LoadModel reads the artifact at src.Path. When the file is absent and a
// URL is configured, it is fetched once, validated, and written to src.Path
// before use. Any failure wraps ErrModelUnavailable.
func LoadModel(ctx context.Context, src ModelSource, logger hclog.Logger) (*Model, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if src.Path == "" {
		logger.Debug("using embedded recognizer model")
		return DefaultModel()
	}

	path, err := homedir.Expand(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: expanding %s: %v", ErrModelUnavailable, src.Path, err)
	}
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		m, perr := ParseModel(data)
		if perr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelUnavailable, path, perr)
		}
		logger.Debug("loaded recognizer model", "path", path, "name", m.Name, "version", m.Version)
		return m, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: reading %s: %v", ErrModelUnavailable, path, err)
	}

	if src.URL == "" {
		return nil, fmt.Errorf("%w: %s does not exist and no model_url is configured", ErrModelUnavailable, path)
	}

	logger.Warn("recognizer model not found locally, fetching", "path", path, "url", src.URL)
	data, err = fetchModel(ctx, src, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrModelUnavailable, src.URL, err)
	}

	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%w: fetched model from %s: %v", ErrModelUnavailable, src.URL, err)
	}

	if err := writeModel(path, data); err != nil {
		// The model is usable for this process; the next start fetches again.
		logger.Warn("could not cache fetched model", "path", path, "error", err)
	} else {
		logger.Info("cached recognizer model", "path", path, "bytes", len(data))
	}
	return m, nil
}

func fetchModel(ctx context.Context, src ModelSource, logger hclog.Logger) ([]byte, error) {
	client := src.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	retry := src.Retry
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn("retrying model fetch", "attempt", attempt, "error", err)
	}

	return resilience.RetryWithResult(ctx, retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return nil, resilience.NewPermanentError("invalid model_url", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &resilience.StatusError{URL: src.URL, StatusCode: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxModelBytes))
	})
}

func writeModel(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
