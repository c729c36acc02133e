package handler

// Two ways out of a handler:
//
//   - writeJSON / writeError for reads and for validation failures, which
//     are rendered as a client error with every field violation listed.
//   - redirect for form submissions: queue a flash message in the session,
//     save it, and send the browser to the next page with 303 See Other.
//
// Both save the session first, because its cookie is a header and must be
// set before the status line goes out.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/game-reviews/internal/apperror"
	"github.com/sakif/game-reviews/internal/session"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error      string                    `json:"error"`
	Message    string                    `json:"message"`
	Violations []apperror.FieldViolation `json:"violations,omitempty"`
}

// responder is embedded by each handler for session-aware responses.
type responder struct {
	sessions *session.Manager
	logger   *slog.Logger
}

func (rs responder) saveSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := session.FromContext(r.Context())
	if sess == nil || !sess.Dirty() {
		return sess
	}
	if err := rs.sessions.Save(w, r, sess); err != nil {
		rs.logger.Error("saving session failed",
			slog.String("sessionID", sess.ID()),
			slog.String("error", err.Error()),
		)
	}
	return sess
}

// redirect queues a flash (when message is non-empty) and sends a 303.
func (rs responder) redirect(w http.ResponseWriter, r *http.Request, kind session.FlashKind, message, target string) {
	if sess := session.FromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(kind, message)
	}
	rs.saveSession(w, r)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (rs responder) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	rs.saveSession(w, r)
	writeJSON(w, status, data)
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	rs.saveSession(w, r)
	if status := statusFor(err); status >= 500 {
		rs.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone already; all that is left is to log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := apperror.KindOf(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || status >= 500 {
		// Driver errors can carry SQL, paths or hostnames; keep them in the log.
		writeJSON(w, status, ErrorResponse{
			Error:   string(kind),
			Message: "An internal error occurred",
		})
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:      string(kind),
		Message:    appErr.Message,
		Violations: appErr.Violations,
	})
}
