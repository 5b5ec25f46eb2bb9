package handler

import (
	"encoding/json"

	"github.com/liavyona/lambda-eks-integration/internal/proxy"
)

// InvocationMeta carries the Lambda-supplied identifiers echoed in the
// envelope.
type InvocationMeta struct {
	RequestID   string
	FunctionARN string
}

// BackendResponse is the dispatch outcome as surfaced to the caller. Status 0
// means no HTTP status was obtained; Data then carries the failure reason.
type BackendResponse struct {
	Status int    `json:"status"`
	Data   string `json:"data"`
}

// Envelope is the invocation output: who ran, what came in, and what the
// backend said.
type Envelope struct {
	RequestID   string          `json:"lambda_request_id"`
	FunctionARN string          `json:"lambda_arn"`
	StatusCode  int             `json:"status_code"`
	Event       json.RawMessage `json:"event"`
	Response    BackendResponse `json:"response"`
}

// NewEnvelope merges invocation metadata, the original event and the dispatch
// result. Total over every Result shape: transport failures produce an
// envelope too, with the reason in place of backend data.
func NewEnvelope(meta InvocationMeta, event json.RawMessage, result proxy.Result) Envelope {
	response := BackendResponse{
		Status: result.StatusCode,
		Data:   string(result.Body),
	}
	if result.Err != nil {
		response = BackendResponse{Data: result.Err.Error()}
	}

	return Envelope{
		RequestID:   meta.RequestID,
		FunctionARN: meta.FunctionARN,
		StatusCode:  response.Status,
		Event:       event,
		Response:    response,
	}
}
