package app

import (
	"errors"
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "Analyze",
			parameters: "/videos/swing.mp4",
		},
		{
			name:       "empty parameters",
			operation:  "ListAnalyses",
			parameters: "",
		},
	}

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters, now)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if !op.StartedAt.Equal(now) {
				t.Errorf("StartedAt = %v, want %v", op.StartedAt, now)
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error keeps success", err: nil, want: false},
		{name: "error marks failure", err: errors.New("upload failed"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Analyze", "", time.Time{})
			op.Fail(tt.err)
			if got := op.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
