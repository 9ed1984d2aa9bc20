package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const cloudEventsContentType = "application/cloudevents+json"

// Envelope is a structured-mode CloudEvent.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	TraceParent     string          `json:"traceparent,omitempty"`
	Data            json.RawMessage `json:"data"`
}

func encodeEnvelope(typ, source, subject string, at time.Time, data []byte, headers map[string]string) ([]byte, map[string]string, error) {
	env := Envelope{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Type:            typ,
		Source:          source,
		Subject:         subject,
		Time:            at.UTC(),
		DataContentType: "application/json",
		TraceParent:     headers["traceparent"],
		Data:            data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, nil, err
	}
	out := map[string]string{"content-type": cloudEventsContentType}
	for k, v := range headers {
		out[k] = v
	}
	return payload, out, nil
}
