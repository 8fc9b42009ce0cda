package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tombee/opspilot/pkg/errors"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "success with map",
			status:     http.StatusOK,
			data:       map[string]string{"message": "success"},
			wantStatus: http.StatusOK,
			wantJSON:   `{"message":"success"}`,
		},
		{
			name:       "success with struct",
			status:     http.StatusCreated,
			data:       struct{ ID int }{ID: 42},
			wantStatus: http.StatusCreated,
			wantJSON:   `{"ID":42}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteJSON() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("WriteJSON() Content-Type = %v, want application/json", ct)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantJSON {
				t.Errorf("WriteJSON() body = %s, want %s", got, tt.wantJSON)
			}
		})
	}
}

func TestWriteErr(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", &errors.ValidationError{Field: "query", Message: "required"}, http.StatusBadRequest, "VALIDATION"},
		{"not found", &errors.NotFoundError{Resource: "runbook", ID: "X"}, http.StatusNotFound, "CONFIGURATION"},
		{"config", &errors.ConfigError{Reason: "bad"}, http.StatusInternalServerError, "CONFIGURATION"},
		{"access", &errors.AccessError{Header: "X-Role"}, http.StatusForbidden, "ACCESS"},
		{"api", &errors.APIError{StatusCode: 500}, http.StatusBadGateway, "API"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErr(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteErr() status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if body["kind"] != tt.wantKind {
				t.Errorf("WriteErr() kind = %q, want %q", body["kind"], tt.wantKind)
			}
			if body["error"] != tt.err.Error() {
				t.Errorf("WriteErr() error = %q, want %q", body["error"], tt.err.Error())
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Query string `json:"query"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"cancel case 1"}`))
	if err := DecodeJSON(r, &v); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if v.Query != "cancel case 1" {
		t.Errorf("DecodeJSON() query = %q", v.Query)
	}

	for _, body := range []string{"", "{not json"} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(r, &v)
		if errors.KindOf(err) != errors.KindValidation {
			t.Errorf("DecodeJSON(%q) kind = %q, want VALIDATION", body, errors.KindOf(err))
		}
	}
}
