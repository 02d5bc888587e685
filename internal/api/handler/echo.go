package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/airyra/accesslog/internal/api/response"
)

// MaxEchoBytes caps the body accepted by Echo.
const MaxEchoBytes = 1 << 20

// EchoHandler serves endpoints that shape their response from the request,
// for exercising the access log.
type EchoHandler struct{}

// NewEchoHandler creates a new EchoHandler.
func NewEchoHandler() *EchoHandler {
	return &EchoHandler{}
}

// Echo handles POST /v1/echo by sending the request body back.
func (h *EchoHandler) Echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxEchoBytes))
	if err != nil {
		response.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Status handles GET /v1/status/{code} by responding with that status and
// an empty body. Codes outside 200-999 are rejected.
func (h *EchoHandler) Status(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 200 || code > 999 {
		response.BadRequest(w, "status code must be an integer between 200 and 999")
		return
	}
	w.WriteHeader(code)
}

// Panic handles GET /v1/panic. It never returns normally.
func (h *EchoHandler) Panic(w http.ResponseWriter, r *http.Request) {
	panic("requested panic")
}
