// Package envelope implements the generic result envelope shared by the
// shop services: every HTTP body is {statusCode, statusMessage, result}.
// The ordering service both produces this shape and decodes it from the
// user and product directories.
package envelope

import (
	"encoding/json"
	"net/http"
)

type Envelope struct {
	StatusCode    int             `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Result        json.RawMessage `json:"result,omitempty"`
}

// Write encodes result into an envelope and writes it with the given status.
func Write(w http.ResponseWriter, status int, message string, result any) error {
	var raw json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return err
		}
		raw = b
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(Envelope{
		StatusCode:    status,
		StatusMessage: message,
		Result:        raw,
	})
}

// Decode unmarshals an envelope body and then its result into out.
// A nil out skips result decoding.
func Decode(body []byte, out any) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	return json.Unmarshal(env.Result, out)
}
