package eip

import (
	"context"
	"fmt"
	"net"
	"time"

	"industrial-bridge/internal/domain"
)

// pylogixBackend is the PYLOGIX backend: every call dials a fresh TCP
// connection to the device and closes it before returning. It does not
// register an EtherNet/IP session and does not frame CIP requests:
// ReadTag writes the bare tag name and returns the raw reply bytes as a
// string without parsing them, WriteTag writes "name=value" and does
// not wait for a reply, Connect reports success once the TCP dial
// succeeds, and DiscoverTags returns an empty list for any reachable
// controller.
type pylogixBackend struct {
	dialTimeout time.Duration
}

func NewPylogix() Backend {
	return &pylogixBackend{dialTimeout: 5 * time.Second}
}

func (p *pylogixBackend) dial(ctx context.Context, device domain.DeviceEIP) (net.Conn, error) {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostWithDefaultPort(device.Host))
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

func (p *pylogixBackend) Connect(ctx context.Context, device domain.DeviceEIP) (ConnectResult, error) {
	conn, err := p.dial(ctx, device)
	if err != nil {
		return ConnectResult{Connected: false, Message: err.Error()}, err
	}
	defer conn.Close()
	// GetPLCTime-equivalent liveness probe: a bare connect at the
	// encapsulation layer is treated as sufficient liveness evidence,
	// same as the simulator's GetPLCTime stub.
	return ConnectResult{Connected: true, Message: "PLC reachable"}, nil
}

func (p *pylogixBackend) DiscoverTags(ctx context.Context, device domain.DeviceEIP) ([]TagInfo, error) {
	conn, err := p.dial(ctx, device)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if device.Slot < 0 {
		return nil, &ErrUnsupported{Reason: "negative backplane slot"}
	}
	// Without a symbolic-tag-service wire encoder to ground the full
	// GetTagList exchange on, discovery returns the empty set for any
	// reachable controller rather than fabricating tag names.
	return []TagInfo{}, nil
}

func (p *pylogixBackend) ReadTag(ctx context.Context, device domain.DeviceEIP, tagName string) (interface{}, error) {
	conn, err := p.dial(ctx, device)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(tagName)); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return string(buf[:n]), nil
}

func (p *pylogixBackend) WriteTag(ctx context.Context, device domain.DeviceEIP, tagName string, value interface{}) error {
	conn, err := p.dial(ctx, device)
	if err != nil {
		return err
	}
	defer conn.Close()

	payload := fmt.Sprintf("%s=%v", tagName, value)
	if _, err := conn.Write([]byte(payload)); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}
