package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/datalens-cli/internal/assistant"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// requestError is a client mistake detected before the pipeline runs.
type requestError struct {
	status int
	msg    assistant.Message
}

func (e *requestError) Error() string { return e.msg.Message }

var (
	errNoFile = &requestError{http.StatusBadRequest, assistant.Message{
		Code: "REQ003", Message: "No file was provided", Action: "Send the data file in the multipart field \"file\"",
	}}
	errTooLarge = &requestError{http.StatusRequestEntityTooLarge, assistant.Message{
		Code: "REQ004", Message: "File exceeds the maximum upload size", Action: "Upload a smaller file or raise max_upload_mb",
	}}
	errBadForm = &requestError{http.StatusBadRequest, assistant.Message{
		Code: "REQ005", Message: "The request is not a valid multipart form", Action: "Post multipart/form-data with a \"file\" field",
	}}
)

// statusFor picks the HTTP status for a pipeline error code.
func statusFor(code string) int {
	switch code {
	case "FMT001":
		return http.StatusUnsupportedMediaType
	case "FMT002":
		return http.StatusUnprocessableEntity
	case "REQ001", "REQ002":
		return http.StatusBadRequest
	case "AI003":
		return http.StatusTooManyRequests
	case "AI008":
		return http.StatusGatewayTimeout
	case "AI001", "AI002", "AI004", "AI005", "AI006", "AI007":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error and writes the user-facing envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		msg    assistant.Message
		status int
		re     *requestError
	)
	if errors.As(err, &re) {
		msg, status = re.msg, re.status
	} else {
		msg = assistant.Explain(err)
		status = statusFor(msg.Code)
	}
	zerolog.Ctx(r.Context()).Warn().
		Err(err).
		Str("code", msg.Code).
		Int("status", status).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request error")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("json encode error")
	}
}
