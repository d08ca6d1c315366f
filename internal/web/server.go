// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"clearclause/internal/config"
	"clearclause/internal/formatters"
	"clearclause/internal/preprocessors"
	"clearclause/internal/redaction"
	"clearclause/internal/security"
	"clearclause/internal/version"

	// Import formatters to register them
	_ "clearclause/internal/formatters/json"
	_ "clearclause/internal/formatters/text"
	_ "clearclause/internal/formatters/yaml"

	"github.com/hashicorp/go-hclog"
)

// portAttempts is how many consecutive ports Start tries.
const portAttempts = 10

// WebServer serves the redaction HTTP API.
type WebServer struct {
	engine       *redaction.Engine
	chain        *preprocessors.Chain
	logger       hclog.Logger
	port         int
	maxTextBytes int64

	mux    *http.ServeMux
	server *http.Server
}

// RedactRequest is the JSON body accepted by the API endpoints.
type RedactRequest struct {
	Text string `json:"text"`
}

// RedactResponse carries only redacted output; original text never leaves
// the server in this response.
type RedactResponse struct {
	Source       string             `json:"source,omitempty"`
	RedactedText string             `json:"redacted_text"`
	Summary      *redaction.Summary `json:"summary"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewWebServer creates a web server instance around a shared engine.
func NewWebServer(engine *redaction.Engine, cfg config.WebConfig, logger hclog.Logger) *WebServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ws := &WebServer{
		engine:       engine,
		chain:        preprocessors.NewChain(),
		logger:       logger.Named("web"),
		port:         cfg.Port,
		maxTextBytes: cfg.MaxTextBytes,
		mux:          http.NewServeMux(),
	}
	ws.chain.SetObserver(engine.Observer())
	ws.setupRoutes()
	return ws
}

// Handler returns the router, for embedding or tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.logRequests(ws.mux)
}

// setupRoutes configures all HTTP route handlers
func (ws *WebServer) setupRoutes() {
	ws.mux.HandleFunc("/health", ws.handleHealth)
	ws.mux.HandleFunc("/api/redact", ws.handleRedact)
	ws.mux.HandleFunc("/api/entities", ws.handleEntities)
}

// Start listens on the configured port, or the next free one, and serves
// until ctx is cancelled.
func (ws *WebServer) Start(ctx context.Context) error {
	var listener net.Listener
	var lastError error
	for i := 0; i < portAttempts; i++ {
		l, err := net.Listen("tcp", ":"+strconv.Itoa(ws.port+i))
		if err != nil {
			lastError = err
			ws.logger.Warn("port not available", "port", ws.port+i, "error", err)
			continue
		}
		listener = l
		break
	}
	if listener == nil {
		return fmt.Errorf("could not find an available port in range %d-%d: %w", ws.port, ws.port+portAttempts-1, lastError)
	}

	ws.server = ws.createSecureServer()
	ws.logger.Info("web API started", "addr", listener.Addr().String(), "version", version.Short())

	errCh := make(chan error, 1)
	go func() {
		errCh <- ws.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ws.logger.Info("shutting down web API")
		return ws.server.Shutdown(shutdownCtx)
	}
}

// Stop stops the web server
func (ws *WebServer) Stop() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// createSecureServer creates an HTTP server with security timeouts
func (ws *WebServer) createSecureServer() *http.Server {
	return &http.Server{
		Handler: ws.Handler(),
		// Timeout for reading request headers (prevents slow header attacks)
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Remote recognizer calls may retry, so writes get more room
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// handleHealth reports liveness and build information
func (ws *WebServer) handleHealth(responseWriter http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(responseWriter, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	versionInfo := version.Full()
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "clearclause",
		"version":   versionInfo["version"],
		"build_info": map[string]interface{}{
			"version":    versionInfo["version"],
			"commit":     versionInfo["commit"],
			"build_date": versionInfo["buildDate"],
			"go_version": versionInfo["goVersion"],
			"platform":   versionInfo["platform"],
		},
		"overlap_mode": string(ws.engine.OverlapMode()),
	}
	ws.writeJSON(responseWriter, http.StatusOK, healthData)
}

// handleRedact returns redacted text and its summary. A format query
// parameter other than json returns a formatted report as a download.
func (ws *WebServer) handleRedact(responseWriter http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(responseWriter, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source, text, err := ws.readText(responseWriter, request)
	if err != nil {
		ws.sendInputError(responseWriter, err)
		return
	}
	defer text.Clear()

	original := text.String()
	redacted, err := ws.engine.Redact(original)
	if err != nil {
		ws.sendEngineError(responseWriter, err)
		return
	}
	summary, err := ws.engine.Summarize(original, redacted)
	if err != nil {
		ws.sendEngineError(responseWriter, err)
		return
	}

	format := request.URL.Query().Get("format")
	if format != "" && format != "json" {
		report := &formatters.Report{Source: source, RedactedText: redacted, Summary: summary}
		content, mimeType, filename, err := formatters.ExportForWeb(format, report, formatters.FormatterOptions{})
		if err != nil {
			ws.sendError(responseWriter, err.Error(), http.StatusBadRequest)
			return
		}
		responseWriter.Header().Set("Content-Type", mimeType)
		responseWriter.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte(content))
		return
	}

	ws.writeJSON(responseWriter, http.StatusOK, RedactResponse{
		Source:       source,
		RedactedText: redacted,
		Summary:      summary,
	})
}

// handleEntities returns the detected entities. Entity text is included
// only with show_entities=true.
func (ws *WebServer) handleEntities(responseWriter http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(responseWriter, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source, text, err := ws.readText(responseWriter, request)
	if err != nil {
		ws.sendInputError(responseWriter, err)
		return
	}
	defer text.Clear()

	entities, err := ws.engine.EntityDetails(text.String())
	if err != nil {
		ws.sendEngineError(responseWriter, err)
		return
	}
	defer entities.Clear()

	showEntities, _ := strconv.ParseBool(request.URL.Query().Get("show_entities"))
	report := formatters.Prepare(&formatters.Report{Source: source, Entities: entities},
		formatters.FormatterOptions{ShowEntities: showEntities})
	ws.writeJSON(responseWriter, http.StatusOK, report)
}

var (
	errBadRequest  = errors.New("invalid request")
	errNoFile      = errors.New("no file uploaded")
	errUnsupported = errors.New("unsupported content type")
)

// readText extracts the request text from a JSON body or a multipart upload
// in the "file" field. The caller clears the returned buffer.
func (ws *WebServer) readText(responseWriter http.ResponseWriter, request *http.Request) (string, *security.SecureString, error) {
	mediaType, _, err := mime.ParseMediaType(request.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "application/json"
	}

	switch mediaType {
	case "application/json":
		return ws.readJSON(responseWriter, request)
	case "multipart/form-data":
		return ws.readUpload(responseWriter, request)
	default:
		return "", nil, fmt.Errorf("%w: %s", errUnsupported, mediaType)
	}
}

func (ws *WebServer) readJSON(responseWriter http.ResponseWriter, request *http.Request) (string, *security.SecureString, error) {
	body, err := preprocessors.ReadLimited(request.Body, ws.bodyLimit())
	if err != nil {
		return "", nil, err
	}
	defer clear(body)

	var req RedactRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	text := security.NewSecureString(req.Text)
	req.Text = ""

	if err := ws.checkLength(text); err != nil {
		text.Clear()
		return "", nil, err
	}
	return "", text, nil
}

func (ws *WebServer) readUpload(responseWriter http.ResponseWriter, request *http.Request) (string, *security.SecureString, error) {
	if limit := ws.bodyLimit(); limit > 0 {
		request.Body = http.MaxBytesReader(responseWriter, request.Body, limit)
	}
	if err := request.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, preprocessors.ErrTooLarge
		}
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer request.MultipartForm.RemoveAll()

	file, header, err := request.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := preprocessors.ReadLimited(file, ws.maxTextBytes)
	if err != nil {
		return "", nil, err
	}

	content, err := ws.chain.Process(header.Filename, data)
	clear(data)
	if err != nil {
		return "", nil, err
	}

	if content.Truncated {
		ws.logger.Warn("document truncated", "source", content.Filename, "pages", content.PageCount)
	}

	if err := ws.checkLength(content.Text); err != nil {
		content.Clear()
		return "", nil, err
	}
	return content.Filename, content.Text, nil
}

// bodyLimit leaves room for JSON escaping and multipart framing.
func (ws *WebServer) bodyLimit() int64 {
	if ws.maxTextBytes <= 0 {
		return 0
	}
	return ws.maxTextBytes*2 + 64<<10
}

func (ws *WebServer) checkLength(text *security.SecureString) error {
	if ws.maxTextBytes > 0 && int64(text.Len()) > ws.maxTextBytes {
		return fmt.Errorf("%w (%d bytes)", preprocessors.ErrTooLarge, ws.maxTextBytes)
	}
	if !utf8.ValidString(text.String()) {
		return fmt.Errorf("%w: text is not valid UTF-8", errBadRequest)
	}
	return nil
}

func (ws *WebServer) sendInputError(responseWriter http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, preprocessors.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, preprocessors.ErrUnsupported), errors.Is(err, errUnsupported):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, preprocessors.ErrNoText):
		status = http.StatusUnprocessableEntity
	}
	ws.sendError(responseWriter, err.Error(), status)
}

// sendEngineError maps engine failures to a status. Recognizer failures are
// never reported as an empty result.
func (ws *WebServer) sendEngineError(responseWriter http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var redactionErr *redaction.RedactionError
	if errors.As(err, &redactionErr) && redactionErr.Type == redaction.ErrorRecognition {
		status = http.StatusBadGateway
	}
	ws.logger.Error("redaction failed", "error", err)
	ws.sendError(responseWriter, "redaction failed: "+err.Error(), status)
}

// sendError sends an error response with a specific HTTP status code
func (ws *WebServer) sendError(responseWriter http.ResponseWriter, message string, statusCode int) {
	ws.writeJSON(responseWriter, statusCode, ErrorResponse{Success: false, Error: message})
}

func (ws *WebServer) writeJSON(responseWriter http.ResponseWriter, statusCode int, v interface{}) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)
	if err := json.NewEncoder(responseWriter).Encode(v); err != nil {
		ws.logger.Warn("error writing response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests logs method, path, status and duration. Bodies are never logged.
func (ws *WebServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: responseWriter, status: http.StatusOK}
		next.ServeHTTP(rec, request)
		ws.logger.Debug("request", "method", request.Method, "path", request.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}
