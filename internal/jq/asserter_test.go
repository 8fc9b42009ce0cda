package jq

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestAsserter_Assert(t *testing.T) {
	body := []byte(`{"status":"cancelled","case":{"id":"2025P1","version":3},"tags":["a","b"]}`)

	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{"empty expression holds", "", false},
		{"equality", `.status == "cancelled"`, false},
		{"nested integer", `.case.version == 3`, false},
		{"truthy value", `.case.id`, false},
		{"array length", `.tags | length == 2`, false},
		{"false result", `.status == "open"`, true},
		{"null result", `.missing`, true},
		{"runtime error", `.status | keys`, true},
		{"parse error", `.[`, true},
		{"no result", `empty`, true},
	}

	a := NewAsserter(0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Assert(context.Background(), tt.expression, body)
			if (err != nil) != tt.wantErr {
				t.Errorf("Assert() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAsserter_NotJSON(t *testing.T) {
	err := NewAsserter(0, 0).Assert(context.Background(), `.ok`, []byte("<html>"))
	if err == nil || !strings.Contains(err.Error(), "not JSON") {
		t.Errorf("expected not JSON error, got %v", err)
	}
}

func TestAsserter_SizeLimit(t *testing.T) {
	err := NewAsserter(0, 4).Assert(context.Background(), `.ok`, []byte(`{"ok":true}`))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestAsserter_Timeout(t *testing.T) {
	a := NewAsserter(20*time.Millisecond, 0)
	err := a.Assert(context.Background(), `last(range(1e10))`, []byte(`{}`))
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestAsserter_Validate(t *testing.T) {
	a := NewAsserter(0, 0)
	if err := a.Validate(`.a == 1`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := a.Validate(`.a ==`); err == nil {
		t.Error("expected error for invalid expression")
	}
	if err := a.Validate(""); err != nil {
		t.Errorf("unexpected error for empty expression: %v", err)
	}
}
