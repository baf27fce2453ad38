package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when the admin authorization check rejects a caller
var ErrUnauthorized = errors.New("unauthorized")

// ErrOrderNotFound is returned when an order does not exist in the store being queried
var ErrOrderNotFound = errors.New("order not found")

// ValidationError reports missing required order fields. It blocks order creation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// EncodingError reports a photo preview that could not be made durable.
// The builder degrades to a placeholder image instead of failing.
type EncodingError struct {
	PhotoID string
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode preview for photo %s: %v", e.PhotoID, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// RemoteFailure reports a network or store error against the remote order store.
// It is retried on the next reconciliation trigger.
type RemoteFailure struct {
	Op      string
	OrderID string
	Err     error
}

func (e *RemoteFailure) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s failed for order %s: %v", e.Op, e.OrderID, e.Err)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

// IntegrityConflict reports two different orders sharing one identifier.
// It is surfaced to the operator and never resolved automatically.
type IntegrityConflict struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (e *IntegrityConflict) Error() string {
	return fmt.Sprintf("integrity conflict on order %s: %s", e.OrderID, e.Reason)
}

// NotificationFailure reports a failed operator notification. It is logged and swallowed.
type NotificationFailure struct {
	OrderID string
	Err     error
}

func (e *NotificationFailure) Error() string {
	return fmt.Sprintf("failed to notify about order %s: %v", e.OrderID, e.Err)
}

func (e *NotificationFailure) Unwrap() error {
	return e.Err
}
