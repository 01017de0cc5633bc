// Package fileengine implements the server side of RequestFileTransfer /
// TransferData / RequestTransferExit (SID 0x38/0x36/0x37): a single
// active file session threading a running CRC-32 across chunks (spec §7
// "File transfer engine").
package fileengine

import (
	"fmt"
	"hash/crc32"
	"os"
)

// Mode mirrors uds.TransferMode; kept distinct here so the engine has no
// import-time dependency on the wire package's request decoding.
type Mode uint8

const (
	ModeAdd Mode = iota + 1
	ModeDelete
	ModeReplace
	ModeRead
)

// Session is one in-flight file transfer. The spec allows exactly one
// active session per client at a time (spec §7 "one session per
// client").
type Session struct {
	Path       string
	Mode       Mode
	BlockLen   int
	TotalSize  uint64
	CurrentPos uint64
	Seq        uint8

	file *os.File
	crc  uint32
}

// Open begins a transfer. For ModeAdd/ModeReplace it creates (or
// truncates) the destination file for writing; for ModeRead it opens the
// existing file for reading. blockLen is negotiated down to the
// transport's usable payload size by the caller before Open is reached.
func Open(path string, mode Mode, blockLen int, totalSize uint64) (*Session, error) {
	s := &Session{Path: path, Mode: mode, BlockLen: blockLen, TotalSize: totalSize, Seq: 1}

	switch mode {
	case ModeAdd, ModeReplace:
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("fileengine: open %q for write: %w", path, err)
		}
		s.file = f
	case ModeRead:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("fileengine: open %q for read: %w", path, err)
		}
		s.file = f
	case ModeDelete:
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("fileengine: delete %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("fileengine: unknown mode %d", mode)
	}
	return s, nil
}

// NextSeq returns the block sequence counter the session currently
// expects. The counter starts at 1 and wraps 0xFF -> 0x00 (spec §7
// "block sequence counter").
func (s *Session) NextSeq() uint8 { return s.Seq }

// advanceSeq rolls the sequence counter forward (spec §7).
func (s *Session) advanceSeq() {
	if s.Seq == 0xFF {
		s.Seq = 0x00
	} else {
		s.Seq++
	}
}

// WriteChunk appends data (an upload, i.e. client -> server) to the
// session, threading it through the running CRC-32 and advancing the
// sequence counter. It returns an error if seq does not match the
// session's expected counter (spec §7 "sequence error").
func (s *Session) WriteChunk(seq uint8, data []byte) error {
	if seq != s.Seq {
		return fmt.Errorf("fileengine: unexpected sequence %d, want %d", seq, s.Seq)
	}
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("fileengine: write: %w", err)
	}
	s.crc = crc32.Update(s.crc, crc32.IEEETable, data)
	s.CurrentPos += uint64(len(data))
	s.advanceSeq()
	return nil
}

// ReadChunk produces the next download chunk (server -> client) of up to
// BlockLen bytes, threading it through the running CRC-32. ok is false
// once the file is exhausted.
func (s *Session) ReadChunk() (data []byte, seq uint8, ok bool, err error) {
	if s.CurrentPos >= s.TotalSize {
		return nil, 0, false, nil
	}
	buf := make([]byte, s.BlockLen)
	n, rerr := s.file.Read(buf)
	if n == 0 && rerr != nil {
		return nil, 0, false, fmt.Errorf("fileengine: read: %w", rerr)
	}
	buf = buf[:n]
	s.crc = crc32.Update(s.crc, crc32.IEEETable, buf)
	s.CurrentPos += uint64(n)
	seq = s.Seq
	s.advanceSeq()
	return buf, seq, true, nil
}

// CRC32 returns the running checksum accumulated so far.
func (s *Session) CRC32() uint32 { return s.crc }

// Close releases the underlying file handle. It is always safe to call,
// including for ModeDelete sessions that never opened one.
func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Abort closes the session and, for writes, removes the partial file —
// used when a CRC mismatch is detected on RequestTransferExit (spec §7
// "CRC mismatch" edge case).
func (s *Session) Abort() error {
	_ = s.Close()
	if s.Mode == ModeAdd || s.Mode == ModeReplace {
		return os.Remove(s.Path)
	}
	return nil
}
