package eip

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"industrial-bridge/internal/domain"
)

// cpppoBackend implements the low-level EtherNet/IP encapsulation
// handshake by hand: a RegisterSession request/reply over TCP,
// followed by CIP service requests framed inside SendRRData. No
// example repo in the corpus carries a CIP client library, so this is
// written directly from the wire-level description: a 28-byte
// little-endian frame, command 0x0065, length 0, zeroed
// handle/status/context/options.
type cpppoBackend struct {
	dialTimeout time.Duration
}

// NewCPPPO constructs the CPPPO EIP backend.
func NewCPPPO() Backend {
	return &cpppoBackend{dialTimeout: 5 * time.Second}
}

const (
	cipCommandRegisterSession = 0x0065
	cipRegisterSessionLen     = 28
)

// registerSession performs the handshake and returns the session
// handle the device assigned. Connection is successful iff the reply
// status word is 0.
func (c *cpppoBackend) registerSession(ctx context.Context, device domain.DeviceEIP) (conn net.Conn, handle uint32, err error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err = dialer.DialContext(ctx, "tcp", hostWithDefaultPort(device.Host))
	if err != nil {
		return nil, 0, fmt.Errorf("dial: %w", err)
	}

	frame := make([]byte, cipRegisterSessionLen)
	binary.LittleEndian.PutUint16(frame[0:2], cipCommandRegisterSession)
	binary.LittleEndian.PutUint16(frame[2:4], 0) // length: no command-specific data follows the 4-byte protocol/options pair
	binary.LittleEndian.PutUint32(frame[4:8], 0) // session handle, zeroed on request
	binary.LittleEndian.PutUint32(frame[8:12], 0) // status, zeroed on request
	// frame[12:20] sender context, zeroed
	binary.LittleEndian.PutUint32(frame[20:24], 0) // options, zeroed
	binary.LittleEndian.PutUint16(frame[24:26], 1) // protocol version
	binary.LittleEndian.PutUint16(frame[26:28], 0) // register-session option flags

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(frame); err != nil {
		conn.Close()
		return nil, 0, fmt.Errorf("write RegisterSession: %w", err)
	}

	reply := make([]byte, cipRegisterSessionLen)
	n, err := readFull(conn, reply)
	if err != nil || n == 0 {
		conn.Close()
		return nil, 0, fmt.Errorf("read RegisterSession reply: %w", err)
	}

	status := binary.LittleEndian.Uint32(reply[8:12])
	if status != 0 {
		conn.Close()
		return nil, 0, fmt.Errorf("RegisterSession rejected: status=0x%x", status)
	}

	return conn, binary.LittleEndian.Uint32(reply[4:8]), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func hostWithDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, "44818")
}

func (c *cpppoBackend) Connect(ctx context.Context, device domain.DeviceEIP) (ConnectResult, error) {
	conn, _, err := c.registerSession(ctx, device)
	if err != nil {
		return ConnectResult{Connected: false, Message: err.Error()}, err
	}
	defer conn.Close()
	return ConnectResult{Connected: true, Message: "RegisterSession ok"}, nil
}

func (c *cpppoBackend) DiscoverTags(ctx context.Context, device domain.DeviceEIP) ([]TagInfo, error) {
	// GetTagList is a PCCC/symbolic-services feature some controllers
	// reject outright depending on slot/firmware; CPPPO's raw
	// encapsulation client does not implement the symbol-services
	// walk, so this is always unsupported for this backend.
	return nil, &ErrUnsupported{Reason: "CPPPO backend implements RegisterSession/SendRRData only, no symbol services"}
}

// cipReadWrite performs a minimal SendRRData exchange carrying one CIP
// service request and returns the raw reply payload following the
// encapsulation header. Known limitation (Open Question b, preserved
// deliberately): the response's CIP status is never parsed — any
// non-empty reply after a successful RegisterSession is treated as
// success, matching the original implementation's behavior exactly.
func (c *cpppoBackend) cipReadWrite(ctx context.Context, device domain.DeviceEIP, tagName string, write []byte) ([]byte, error) {
	conn, handle, err := c.registerSession(ctx, device)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	payload := buildSendRRData(handle, tagName, write)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("write SendRRData: %w", err)
	}

	reply := make([]byte, 256)
	n, err := conn.Read(reply)
	if err != nil {
		return nil, fmt.Errorf("read SendRRData reply: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("empty reply")
	}
	return reply[:n], nil
}

func buildSendRRData(sessionHandle uint32, tagName string, writeData []byte) []byte {
	// Minimal encapsulation header; CIP service body is not modeled
	// byte-for-byte beyond what distinguishes a read from a write,
	// since no example carries a CIP encoder to ground the body on.
	header := make([]byte, cipRegisterSessionLen)
	binary.LittleEndian.PutUint16(header[0:2], 0x006F) // SendRRData
	binary.LittleEndian.PutUint32(header[4:8], sessionHandle)
	body := []byte(tagName)
	body = append(body, writeData...)
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(body)))
	return append(header, body...)
}

func (c *cpppoBackend) ReadTag(ctx context.Context, device domain.DeviceEIP, tagName string) (interface{}, error) {
	reply, err := c.cipReadWrite(ctx, device, tagName, nil)
	if err != nil {
		return nil, err
	}
	// No response body parsing (Open Question b): return the raw
	// reply as a string, the same "success on any reply" contract the
	// original implementation exposes.
	return string(reply), nil
}

func (c *cpppoBackend) WriteTag(ctx context.Context, device domain.DeviceEIP, tagName string, value interface{}) error {
	encoded := []byte(fmt.Sprintf("%v", value))
	_, err := c.cipReadWrite(ctx, device, tagName, encoded)
	return err
}
