// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recognizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recognizerServer(t *testing.T, detect http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/detect", detect)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote_Detect(t *testing.T) {
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req detectRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "John Smith works at Acme Corp.", req.Text)

		_ = json.NewEncoder(w).Encode(detectResponse{Entities: []Entity{
			{Label: "PERSON", Start: 0, End: 10},
			{Label: "ORG", Start: 20, End: 29},
		}})
	})

	r, err := NewRemote(context.Background(), RemoteConfig{Endpoint: srv.URL + "/"}, nil)
	require.NoError(t, err)

	entities, err := r.Detect("John Smith works at Acme Corp.")
	require.NoError(t, err)
	assert.Equal(t, []Entity{
		{Label: "PERSON", Start: 0, End: 10},
		{Label: "ORG", Start: 20, End: 29},
	}, entities)
}

func TestRemote_EmptyTextSkipsRequest(t *testing.T) {
	var calls int32
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	r, err := NewRemote(context.Background(), RemoteConfig{Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	entities, err := r.Detect("")
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRemote_RejectsOutOfRangeOffsets(t *testing.T) {
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(detectResponse{Entities: []Entity{{Label: "PERSON", Start: 0, End: 99}}})
	})

	r, err := NewRemote(context.Background(), RemoteConfig{Endpoint: srv.URL}, nil)
	require.NoError(t, err)

	_, err = r.Detect("short")
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestRemote_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	r, err := NewRemote(context.Background(), RemoteConfig{Endpoint: srv.URL, MaxRetries: 3}, nil)
	require.NoError(t, err)

	_, err = r.Detect("some text")
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemote_ServerErrorIsRetried(t *testing.T) {
	var calls int32
	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(detectResponse{})
	})

	r, err := NewRemote(context.Background(), RemoteConfig{Endpoint: srv.URL, MaxRetries: 1}, nil)
	require.NoError(t, err)

	entities, err := r.Detect("some text")
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewRemote_HealthCheckFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewRemote(context.Background(), RemoteConfig{Endpoint: srv.URL}, nil)
	assert.ErrorIs(t, err, ErrRecognizerUnavailable)

	_, err = NewRemote(context.Background(), RemoteConfig{}, nil)
	assert.ErrorIs(t, err, ErrRecognizerUnavailable)
}

func TestNew_Backends(t *testing.T) {
	rec, err := New(context.Background(), Options{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Builtin{}, rec)

	srv := recognizerServer(t, func(w http.ResponseWriter, r *http.Request) {})
	rec, err = New(context.Background(), Options{Backend: BackendHTTP, Endpoint: srv.URL}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Remote{}, rec)

	_, err = New(context.Background(), Options{Backend: "spacy"}, nil)
	assert.Error(t, err)
}

func TestShared_InitializesOnce(t *testing.T) {
	resetShared()
	t.Cleanup(resetShared)

	first, err := Shared(context.Background(), Options{}, nil)
	require.NoError(t, err)

	second, err := Shared(context.Background(), Options{Backend: "ignored"}, nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestShared_FailureIsSticky(t *testing.T) {
	resetShared()
	t.Cleanup(resetShared)

	missing := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := Shared(context.Background(), Options{ModelPath: missing}, nil)
	require.ErrorIs(t, err, ErrModelUnavailable)

	_, err = os.Stat(missing)
	require.True(t, os.IsNotExist(err))

	_, err = Shared(context.Background(), Options{}, nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestStaticAndValidate(t *testing.T) {
	s := Static{{Label: "PERSON", Start: 0, End: 4}, {Label: "ORG", Start: 10, End: 40}}

	entities, err := s.Detect("Jane at work")
	require.NoError(t, err)
	assert.Equal(t, []Entity{{Label: "PERSON", Start: 0, End: 4}}, entities)

	assert.NoError(t, Validate(entities, 12))
	assert.ErrorIs(t, Validate([]Entity{{Label: "DATE", Start: 3, End: 3}}, 12), ErrInvalidEntity)
	assert.ErrorIs(t, Validate([]Entity{{Label: "DATE", Start: -1, End: 2}}, 12), ErrInvalidEntity)
}
