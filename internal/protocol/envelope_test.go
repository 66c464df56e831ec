package protocol

import (
	"encoding/json"
	"testing"
)

func TestValidateRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode int
	}{
		{name: "null", raw: `null`, wantCode: CodeParseError},
		{name: "not an object", raw: `"research.start"`, wantCode: CodeParseError},
		{name: "array", raw: `[1,2,3]`, wantCode: CodeParseError},
		{name: "missing id", raw: `{"kind":"request","method":"research.start"}`, wantCode: CodeInvalidRequest},
		{name: "missing method", raw: `{"id":"abc","kind":"request"}`, wantCode: CodeInvalidRequest},
		{name: "bogus kind", raw: `{"id":"abc","kind":"bogus","method":"research.start"}`, wantCode: CodeInvalidRequest},
		{name: "empty kind", raw: `{"id":"abc","method":"research.start"}`, wantCode: CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Validate([]byte(tt.raw))
			if env != nil {
				t.Fatalf("Validate returned envelope for invalid input")
			}
			perr, ok := err.(*ErrorPayload)
			if !ok {
				t.Fatalf("error type = %T, want *ErrorPayload", err)
			}
			if perr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", perr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidateAcceptsWellFormedEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "request", raw: `{"id":"1","kind":"request","method":"research.start","params":{"sessionId":"s1"}}`},
		{name: "response", raw: `{"id":"1","kind":"response","result":{"ok":true}}`},
		{name: "notification", raw: `{"id":"2","kind":"notification","method":"workflow.progress","params":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Validate([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if env.ID == "" {
				t.Errorf("envelope id empty after validation")
			}
		})
	}
}

func TestResponseCorrelation(t *testing.T) {
	req, err := NewRequest("workflow.status", map[string]string{"sessionId": "s1"})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if req.Kind != KindRequest {
		t.Errorf("kind = %q, want %q", req.Kind, KindRequest)
	}
	if req.ID == "" {
		t.Fatal("request id not generated")
	}

	res := NewResponse(req.ID, map[string]string{"stage": "initial"})
	if res.ID != req.ID {
		t.Errorf("response id = %q, want request id %q", res.ID, req.ID)
	}
	if res.Kind != KindResponse {
		t.Errorf("kind = %q, want %q", res.Kind, KindResponse)
	}

	errRes := NewErrorResponse(req.ID, CodeMethodNotFound, "no such method", nil)
	if errRes.Error == nil || errRes.Error.Code != CodeMethodNotFound {
		t.Errorf("error payload = %+v, want code %d", errRes.Error, CodeMethodNotFound)
	}
	if errRes.Result != nil {
		t.Error("error response must not carry a result")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	notif := NewNotification("workflow.progress", map[string]interface{}{
		"sessionId": "s1",
		"stage":     "research",
		"progress":  42,
	})

	data, err := json.Marshal(notif)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := Validate(data)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if decoded.Kind != KindNotification || decoded.Method != "workflow.progress" {
		t.Errorf("decoded = %+v", decoded)
	}
}
