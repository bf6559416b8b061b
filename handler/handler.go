package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"deckforge/internal/usecase"
)

// GenerateService is the pipeline surface consumed by the HTTP boundary.
type GenerateService interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (usecase.GenerateOutput, error)
	Status(ctx context.Context) usecase.StatusOutput
}

type Server struct {
	svc    GenerateService
	logger *slog.Logger
}

// New builds the HTTP handler serving the generate and status operations.
func New(svc GenerateService, logger *slog.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/status", s.handleStatus)
	return s.withLogging(mux), nil
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type generateRequest struct {
	Topic string `json:"topic"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type statusResponse struct {
	Configured  bool       `json:"configured"`
	Healthy     bool       `json:"healthy"`
	LastChecked *time.Time `json:"lastChecked,omitempty"`
	Model       string     `json:"model"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   string(usecase.ErrorInvalidInput),
			Message: "Request body must be a JSON object with a topic field.",
		})
		return
	}

	// Once issued, the upstream stages run to completion, timeout, or error;
	// an abandoned inbound connection must not abort them mid-flight.
	out, err := s.svc.Generate(context.WithoutCancel(r.Context()), usecase.GenerateInput{Topic: req.Topic})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Document)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	st := s.svc.Status(r.Context())
	resp := statusResponse{
		Configured: st.Configured,
		Healthy:    st.Healthy,
		Model:      st.Model,
	}
	if st.Checked {
		t := st.LastChecked
		resp.LastChecked = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := usecase.ErrorInternal
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		code = ucErr.Code
	}
	writeJSON(w, statusFor(code), errorResponse{
		Error:   string(code),
		Message: messageFor(code, err),
	})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorMissingCredential:
		return http.StatusServiceUnavailable
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream, usecase.ErrorStructureParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor picks the user-facing message. Upstream failures reuse the
// adapter's kind-specific message so a rate limit reads differently from an
// outage.
func messageFor(code usecase.ErrorCode, err error) string {
	switch code {
	case usecase.ErrorInvalidInput:
		return "Please provide a topic for the presentation."
	case usecase.ErrorMissingCredential:
		return "The LLM API key is not configured."
	case usecase.ErrorStructureParse:
		return "The model returned an invalid presentation structure."
	case usecase.ErrorRateLimited, usecase.ErrorUpstream:
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) && ucErr.Err != nil {
			return ucErr.Err.Error()
		}
		return "The upstream generation service failed."
	default:
		return "Something went wrong while generating the presentation."
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:   "METHOD_NOT_ALLOWED",
		Message: "Method not allowed.",
	})
}
