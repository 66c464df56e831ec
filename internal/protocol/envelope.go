package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope kinds exchanged over the persistent connection.
const (
	KindRequest      = "request"
	KindResponse     = "response"
	KindNotification = "notification"
)

// Error codes follow the JSON-RPC numeric taxonomy so clients can branch on
// error class without string matching.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Envelope is the unit of exchange between caller and service. A response
// reuses the id of the request it answers; notifications have no response.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    interface{}     `json:"result,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorPayload struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ErrorPayload) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request envelope with a fresh correlation id.
func NewRequest(method string, params interface{}) (*Envelope, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Kind:      KindRequest,
		Method:    method,
		Params:    raw,
		Timestamp: time.Now(),
	}, nil
}

// NewResponse answers the request identified by requestID.
func NewResponse(requestID string, result interface{}) *Envelope {
	return &Envelope{
		ID:        requestID,
		Kind:      KindResponse,
		Result:    result,
		Timestamp: time.Now(),
	}
}

// NewErrorResponse answers a request with an error payload instead of a result.
func NewErrorResponse(requestID string, code int, message string, data interface{}) *Envelope {
	return &Envelope{
		ID:        requestID,
		Kind:      KindResponse,
		Error:     &ErrorPayload{Code: code, Message: message, Data: data},
		Timestamp: time.Now(),
	}
}

// NewNotification builds an unsolicited push. Notifications carry their own id
// for logging but no caller correlates on it.
func NewNotification(method string, params interface{}) *Envelope {
	raw, _ := json.Marshal(params)
	return &Envelope{
		ID:        uuid.NewString(),
		Kind:      KindNotification,
		Method:    method,
		Params:    raw,
		Timestamp: time.Now(),
	}
}

// Validate decodes and checks an inbound frame. Anything that is not a JSON
// object with a non-empty id, a non-empty method and a known kind is rejected
// before it can reach dispatch.
func Validate(raw []byte) (*Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil || probe == nil {
		return nil, &ErrorPayload{Code: CodeParseError, Message: "message is not a JSON object"}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ErrorPayload{Code: CodeParseError, Message: "malformed envelope"}
	}

	if env.ID == "" {
		return nil, &ErrorPayload{Code: CodeInvalidRequest, Message: "envelope missing id"}
	}
	switch env.Kind {
	case KindRequest, KindNotification:
		if env.Method == "" {
			return nil, &ErrorPayload{Code: CodeInvalidRequest, Message: "envelope missing method"}
		}
	case KindResponse:
		// Responses carry no method.
	default:
		return nil, &ErrorPayload{Code: CodeInvalidRequest, Message: fmt.Sprintf("unknown envelope kind %q", env.Kind)}
	}

	return &env, nil
}
