package models

import (
	"errors"
	"strings"
	"testing"
)

func TestEndpointValidate(t *testing.T) {
	tests := []struct {
		name     string
		endpoint Endpoint
		wantErr  error
	}{
		{
			name:     "valid",
			endpoint: Endpoint{Host: "203.0.113.7", Port: 34608, User: "root"},
			wantErr:  nil,
		},
		{
			name:     "missing host",
			endpoint: Endpoint{Port: 22, User: "root"},
			wantErr:  ErrInvalidHost,
		},
		{
			name:     "port out of range",
			endpoint: Endpoint{Host: "h", Port: 70000, User: "root"},
			wantErr:  ErrInvalidPort,
		},
		{
			name:     "zero port",
			endpoint: Endpoint{Host: "h", User: "root"},
			wantErr:  ErrInvalidPort,
		},
		{
			name:     "missing user",
			endpoint: Endpoint{Host: "h", Port: 22},
			wantErr:  ErrInvalidUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.endpoint.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTaskID(t *testing.T) {
	valid := []string{"task_a1b2c3d4", "train_deadbeef01", "t_00000000", "x"}
	for _, id := range valid {
		if err := ValidateTaskID(id); err != nil {
			t.Errorf("ValidateTaskID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"_leading_underscore",
		"has space",
		"semi;colon",
		"dot./path",
		"back`tick",
		"dollar$bomb",
		"new\nline",
		"../../etc/passwd",
		"waytoolong_" + strings.Repeat("a", 64),
	}
	for _, id := range invalid {
		if err := ValidateTaskID(id); !errors.Is(err, ErrInvalidTaskID) {
			t.Errorf("ValidateTaskID(%q) = %v, want ErrInvalidTaskID", id, err)
		}
	}
}

func TestValidateTaskName(t *testing.T) {
	if err := ValidateTaskName(""); err != nil {
		t.Errorf("empty task name should be allowed, got %v", err)
	}
	if err := ValidateTaskName("train-run2"); err != nil {
		t.Errorf("ValidateTaskName(train-run2) = %v, want nil", err)
	}
	if err := ValidateTaskName("bad;name"); !errors.Is(err, ErrInvalidTaskName) {
		t.Errorf("expected ErrInvalidTaskName, got %v", err)
	}
}

func TestValidatePID(t *testing.T) {
	if err := ValidatePID(12345); err != nil {
		t.Errorf("ValidatePID(12345) = %v, want nil", err)
	}
	for _, pid := range []int{0, -1} {
		if err := ValidatePID(pid); !errors.Is(err, ErrInvalidPID) {
			t.Errorf("ValidatePID(%d) = %v, want ErrInvalidPID", pid, err)
		}
	}
}

func TestValidationErrorsAggregate(t *testing.T) {
	v := &ValidationErrors{}
	if v.Err() != nil {
		t.Fatal("empty aggregate should return nil")
	}

	v.Add("host", ErrInvalidHost)
	v.AddMessage("port", "out of range")

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInvalidHost) {
		t.Errorf("errors.Is should match the cause, got %v", err)
	}
	if got := err.Error(); got != "host: host is required; port: out of range" {
		t.Errorf("Error() = %q", got)
	}
	if !IsValidation(err) {
		t.Error("IsValidation should be true for aggregate errors")
	}
}
