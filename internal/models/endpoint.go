// Package models defines the core domain types for rig.
package models

import (
	"errors"
	"fmt"
)

// Endpoint validation errors.
var (
	ErrInvalidHost = errors.New("host is required")
	ErrInvalidPort = errors.New("port must be between 1 and 65535")
	ErrInvalidUser = errors.New("user is required")
)

// Endpoint identifies an SSH destination on a rented instance.
// It carries no persisted identity beyond a single call's session.
type Endpoint struct {
	// Host is the hostname or IP address of the remote machine.
	Host string `json:"host"`

	// Port is the SSH port.
	Port int `json:"port"`

	// User is the username to connect as.
	User string `json:"user"`
}

// Addr returns the host:port dial address.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// String returns a human-readable user@host:port form.
func (e Endpoint) String() string {
	if e.User == "" {
		return e.Addr()
	}
	return fmt.Sprintf("%s@%s:%d", e.User, e.Host, e.Port)
}

// Validate checks if the endpoint is usable as an SSH destination.
func (e Endpoint) Validate() error {
	validation := &ValidationErrors{}
	if e.Host == "" {
		validation.Add("host", ErrInvalidHost)
	}
	if e.Port < 1 || e.Port > 65535 {
		validation.Add("port", ErrInvalidPort)
	}
	if e.User == "" {
		validation.Add("user", ErrInvalidUser)
	}
	return validation.Err()
}
