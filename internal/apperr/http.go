package apperr

import (
	"encoding/json"
	"net/http"
)

// Body: JSON-тело ошибки.
type Body struct {
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
	Fields  []string          `json:"fields,omitempty"`
}

// Status maps err to its HTTP status code; unknown errors are 500.
func Status(err error) int {
	return KindOf(err).Status()
}

// BodyOf renders the client-facing body. Internal failures do not leak
// storage messages.
func BodyOf(err error, fallback string) Body {
	e, ok := As(err)
	if !ok {
		return Body{Message: fallback}
	}
	switch e.Kind {
	case KindInvalidArgument, KindNotFound, KindConflict:
		return Body{Message: e.Message, Detail: e.Detail, Fields: e.Fields}
	default:
		return Body{Message: fallback}
	}
}

// Write answers the request with err's status and JSON body.
func Write(w http.ResponseWriter, err error, fallback string) {
	WriteJSON(w, Status(err), BodyOf(err, fallback))
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
