// Package eip implements the EtherNet/IP (CIP) adapter: a pluggable
// backend selector (PYLOGIX real-stack style, CPPPO hand-rolled
// encapsulation handshake, MOCK in-process simulator) behind one
// contract. Every operation opens a scoped session and releases it on
// all exit paths; no long-lived client is held by the adapter between
// calls.
package eip

import (
	"context"
	"errors"
	"time"

	"industrial-bridge/internal/apperr"
	"industrial-bridge/internal/domain"
)

// TagInfo is the result of a tag discovery call.
type TagInfo struct {
	Name     string
	DataType string
}

// ConnectResult is the outcome of a liveness probe.
type ConnectResult struct {
	Connected bool
	Message   string
}

// Backend is the capability object every EIP implementation satisfies.
// Select one at process startup and inject it into the adapter; do not
// switch backends per device.
type Backend interface {
	// Connect issues a liveness probe (GetPLCTime-equivalent /
	// RegisterSession) against the device and reports the outcome.
	Connect(ctx context.Context, device domain.DeviceEIP) (ConnectResult, error)

	// DiscoverTags lists the controller's addressable tags. May fail
	// with ErrUnsupported when the controller/slot does not support
	// tag listing.
	DiscoverTags(ctx context.Context, device domain.DeviceEIP) ([]TagInfo, error)

	// ReadTag returns the tag's current value as its natural Go type
	// (bool, int64, float64, or string).
	ReadTag(ctx context.Context, device domain.DeviceEIP, tagName string) (interface{}, error)

	// WriteTag sets the tag to value.
	WriteTag(ctx context.Context, device domain.DeviceEIP, tagName string, value interface{}) error
}

// Adapter is the contract-level EIP adapter: it owns no device state
// itself, delegating every operation to the injected Backend.
type Adapter struct {
	backend Backend
}

func New(backend Backend) *Adapter {
	return &Adapter{backend: backend}
}

func (a *Adapter) Connect(ctx context.Context, device domain.DeviceEIP) (ConnectResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(device.TimeoutSeconds))
	defer cancel()
	return a.backend.Connect(ctx, device)
}

func (a *Adapter) DiscoverTags(ctx context.Context, device domain.DeviceEIP) ([]TagInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(device.TimeoutSeconds))
	defer cancel()
	tags, err := a.backend.DiscoverTags(ctx, device)
	if err != nil {
		var unsupported *ErrUnsupported
		if errors.As(err, &unsupported) {
			return nil, apperr.New(apperr.UnsupportedOperation, "eip.discoverTags", err)
		}
		return nil, err
	}
	return tags, nil
}

func (a *Adapter) ReadTag(ctx context.Context, device domain.DeviceEIP, tagName string) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(device.TimeoutSeconds))
	defer cancel()
	return a.backend.ReadTag(ctx, device, tagName)
}

func (a *Adapter) WriteTag(ctx context.Context, device domain.DeviceEIP, tagName string, value interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(device.TimeoutSeconds))
	defer cancel()
	return a.backend.WriteTag(ctx, device, tagName, value)
}

func timeoutOrDefault(seconds float64) time.Duration {
	if seconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}

// ErrUnsupported is returned by DiscoverTags when the controller/slot
// rejects tag listing; callers should surface it to the admin UI with
// a remediation hint rather than marking the device down.
type ErrUnsupported struct {
	Reason string
}

func (e *ErrUnsupported) Error() string {
	return "not supported on this controller/slot: " + e.Reason
}
