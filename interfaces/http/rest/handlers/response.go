package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/pkg/auth"
	apperrors "qdesign-backend/pkg/errors"
)

// SessionHeader lets a REST caller name its realtime session so server
// notices about its own change are not echoed back to it
const SessionHeader = "X-Session-ID"

const (
	defaultBodyLimit = 1 << 20
	// pool uploads may exceed the inline threshold and go to the blob store
	uploadBodyLimit = 64 << 20
)

var errUnauthorized = errors.New("unauthorized")

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error     bool   `json:"error"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// responder holds the shared write helpers every handler embeds
type responder struct {
	logger *zap.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError maps err onto the envelope. Internal details are logged,
// never sent.
func (h responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUnauthorized) {
		h.respondJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   true,
			Type:    "UNAUTHORIZED",
			Message: "Unauthorized",
			Code:    http.StatusUnauthorized,
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	requestID := chimiddleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestID", requestID),
			zap.Error(err))
	} else {
		h.logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("type", string(apperrors.TypeOf(err))),
			zap.Error(err))
	}

	h.respondJSON(w, status, ErrorResponse{
		Error:     true,
		Type:      string(apperrors.TypeOf(err)),
		Message:   apperrors.PublicMessage(err),
		Code:      status,
		RequestID: requestID,
	})
}

// caller resolves the authenticated user set by the auth middleware
func caller(r *http.Request) (services.Caller, error) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		return services.Caller{}, errUnauthorized
	}
	return services.CallerFromUser(user, r.Header.Get(SessionHeader)), nil
}

// decode reads a JSON body of at most limit bytes into v
func decode(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperrors.NewValidationf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return apperrors.NewValidation("request body is empty")
		default:
			return apperrors.NewValidation(fmt.Sprintf("invalid request body: %v", err))
		}
	}
	return nil
}
