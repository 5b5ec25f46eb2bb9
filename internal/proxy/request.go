package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEvent is returned when the inbound event is not valid JSON.
var ErrInvalidEvent = errors.New("invalid event payload")

// Request is one proxied call: the composed API server path plus the exact
// bytes to forward. Built once per invocation and consumed exactly once.
type Request struct {
	Target ServiceTarget
	// Path is the full API server path including any forwarded query string.
	Path string
	// Body is the JSON event forwarded verbatim.
	Body []byte
	// Headers are optional extra headers set on the forwarded request.
	Headers map[string]string
}

// BuildRequest validates the target and packages the event as the request
// body. The event travels as received; an empty event is sent as JSON null.
func BuildRequest(target ServiceTarget, event []byte, extraHeaders map[string]string) (*Request, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	path, err := target.ProxyPath()
	if err != nil {
		return nil, err
	}

	if len(event) == 0 {
		event = []byte("null")
	}
	if !json.Valid(event) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidEvent)
	}

	return &Request{
		Target:  target,
		Path:    path,
		Body:    event,
		Headers: extraHeaders,
	}, nil
}
