// Package provider defines the error taxonomy shared by all external
// provider clients. Callers branch on the error kind, never on provider
// specific status codes.
package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindQuota     Kind = "quota"      // daily limit exhausted, degrade gracefully
	KindRateLimit Kind = "rate_limit" // transient throttling, back off
	KindAuth      Kind = "auth"       // bad credentials, fatal for the step
	KindTransient Kind = "transient"  // network/5xx/timeout, fatal for the step
	KindPermanent Kind = "permanent"  // bad request or unexpected response
)

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Message  string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s error (%d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Provider, e.Kind, e.Message)
}

// New builds a classified provider error.
func New(providerName string, kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Provider: providerName, Status: status, Message: message}
}

// KindOf returns the kind of err, or KindTransient when err is not a
// classified provider error (unclassified failures are treated as transient).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// IsQuota reports whether err is a daily-quota failure.
func IsQuota(err error) bool {
	return KindOf(err) == KindQuota
}

// IsRateLimit reports whether err is a rate-limit failure.
func IsRateLimit(err error) bool {
	return KindOf(err) == KindRateLimit
}
