package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// errEnvelopeShape is returned by decodeEnvelope for any body that is not a
// canonical envelope.
var errEnvelopeShape = errors.New("unexpected response shape")

type wireEnvelope struct {
	Success   *bool           `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
}

// responseError is an error envelope read back by decodeEnvelope.
type responseError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *responseError) Error() string { return e.Code + ": " + e.Message }

// decodeEnvelope reads one canonical envelope from r, rejecting unknown
// members. On success the data member is decoded into data when non-nil.
func decodeEnvelope(r io.Reader, data any) (message string, err error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var w wireEnvelope
	if err := dec.Decode(&w); err != nil {
		return "", fmt.Errorf("%w: %v", errEnvelopeShape, err)
	}
	if w.Success == nil {
		return "", fmt.Errorf("%w: missing success flag", errEnvelopeShape)
	}
	if !*w.Success {
		return w.Message, &responseError{Code: w.Code, Message: w.Message, RequestID: w.RequestID}
	}
	if data == nil || len(w.Data) == 0 || string(w.Data) == "null" {
		return w.Message, nil
	}
	inner := json.NewDecoder(bytes.NewReader(w.Data))
	inner.DisallowUnknownFields()
	if err := inner.Decode(data); err != nil {
		return w.Message, fmt.Errorf("%w: data: %v", errEnvelopeShape, err)
	}
	return w.Message, nil
}
