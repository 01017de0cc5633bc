//go:build linux

// Package cansock is the minimal Linux SocketCAN binding the CLI
// binaries wire as the isotp.FrameSink/frame-source external
// collaborator (spec §1 "CAN driver integration" is explicitly out of
// scope for the UDS/ISO-TP stack itself, but cmd/udsserver and
// cmd/udsclient still need a real frame source to drive it over).
package cansock

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/udsforge/udsforge/pkg/isotp"
)

const frameSize = 16 // struct can_frame: u32 id, u8 len, u8 pad[3], u8 data[8]

// Socket is a raw CAN_RAW socket bound to one interface.
type Socket struct {
	fd int
}

// Open binds a CAN_RAW socket to the named interface (e.g. "can0",
// "vcan0").
func Open(iface string) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("cansock: socket: %w", err)
	}

	ifi, err := unix.IfNameToIndex(iface)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("cansock: interface %q: %w", iface, err)
	}

	addr := &unix.SockaddrCAN{Ifindex: int(ifi)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("cansock: bind %q: %w", iface, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("cansock: set nonblock: %w", err)
	}

	return &Socket{fd: fd}, nil
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// SendFrame implements isotp.FrameSink by writing one classic CAN frame
// (up to 8 data bytes, padded) to the bus.
func (s *Socket) SendFrame(f isotp.Frame) error {
	if len(f.Data) > 8 {
		return fmt.Errorf("cansock: frame data %d bytes exceeds classic CAN 8-byte payload", len(f.Data))
	}

	buf := make([]byte, frameSize)
	putUint32(buf[0:4], f.ID)
	buf[4] = byte(len(f.Data))
	copy(buf[8:], f.Data)

	_, err := unix.Write(s.fd, buf)
	if err != nil {
		return fmt.Errorf("cansock: write: %w", err)
	}
	return nil
}

// ReadFrame does a single non-blocking read attempt and reports whether
// a frame was available. Callers (the CLI's poll loop) call this
// alongside isotp.Binding.Poll.
func (s *Socket) ReadFrame() (id uint32, data []byte, ok bool, err error) {
	buf := make([]byte, frameSize)
	n, readErr := unix.Read(s.fd, buf)
	if readErr == unix.EAGAIN || readErr == unix.EWOULDBLOCK {
		return 0, nil, false, nil
	}
	if readErr != nil {
		return 0, nil, false, fmt.Errorf("cansock: read: %w", readErr)
	}
	if n < frameSize {
		return 0, nil, false, nil
	}

	id = getUint32(buf[0:4]) &^ unix.CAN_ERR_FLAG
	dlc := int(buf[4])
	if dlc > 8 {
		dlc = 8
	}
	return id, append([]byte(nil), buf[8:8+dlc]...), true, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
