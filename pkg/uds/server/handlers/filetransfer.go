package handlers

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/udsforge/udsforge/internal/archive"
	"github.com/udsforge/udsforge/internal/bytesize"
	"github.com/udsforge/udsforge/internal/fileengine"
	"github.com/udsforge/udsforge/internal/logger"
	"github.com/udsforge/udsforge/internal/metrics"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// FileTransferConfig configures the server-side 0x36/0x37/0x38 handlers
// (spec §7 "File transfer engine").
type FileTransferConfig struct {
	// BaseDir bounds every transfer path; client-supplied paths are
	// resolved under it and may not escape via "..".
	BaseDir string
	// ChunkSize is the engine's internal max block size; the negotiated
	// maxNumberOfBlockLength is min(ChunkSize, transport MTU - 2).
	ChunkSize int
	// TransportMTU is the transport's usable payload size, used in the
	// maxNumberOfBlockLength negotiation.
	TransportMTU int
	// MaxFileSize caps the size an upload may declare; 0 means
	// unbounded.
	MaxFileSize bytesize.ByteSize
	Archiver    *archive.Archiver
	Metrics     *metrics.Metrics
}

type fileTransferState struct {
	mu      sync.Mutex
	cfg     FileTransferConfig
	session *fileengine.Session
}

// RegisterFileTransfer wires RequestFileTransfer/TransferData/
// RequestTransferExit and the session-timeout cleanup that releases an
// in-flight file handle (spec §7 "Session timeout during an active file
// session").
func RegisterFileTransfer(s *server.Server, cfg FileTransferConfig) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	st := &fileTransferState{cfg: cfg}

	s.Register(server.EventRequestFileTransfer, server.PriorityNormal, "requestfiletransfer", st.handleRequestFileTransfer)
	s.Register(server.EventTransferData, server.PriorityNormal, "transferdata", st.handleTransferData)
	s.Register(server.EventRequestTransferExit, server.PriorityNormal, "requesttransferexit", st.handleRequestTransferExit)
	s.Register(server.EventSessionTimeout, server.PriorityLow, "filetransfer-timeout", st.handleSessionTimeout)
}

func (st *fileTransferState) resolvePath(rel string) (string, bool) {
	clean := filepath.Clean("/" + rel)
	full := filepath.Join(st.cfg.BaseDir, clean)
	if !strings.HasPrefix(full, filepath.Clean(st.cfg.BaseDir)+string(filepath.Separator)) && full != filepath.Clean(st.cfg.BaseDir) {
		return "", false
	}
	return full, true
}

func (st *fileTransferState) negotiatedBlockLen() int {
	if st.cfg.TransportMTU > 0 && st.cfg.TransportMTU-2 < st.cfg.ChunkSize {
		return st.cfg.TransportMTU - 2
	}
	return st.cfg.ChunkSize
}

func (st *fileTransferState) handleRequestFileTransfer(ctx *server.RequestContext) uerr.Outcome {
	p := ctx.Payload
	if len(p) < 4 {
		return uerr.Err(uerr.NRCIncorrectMessageLength)
	}
	mode := fileengine.Mode(p[1])
	pathLen := int(p[2])
	if len(p) < 3+pathLen+2 {
		return uerr.Err(uerr.NRCIncorrectMessageLength)
	}
	path := string(p[3 : 3+pathLen])
	idx := 3 + pathLen
	idx++ // dataFormatId, unused
	sizeLen := int(p[idx])
	idx++

	var clientSize uint64
	if sizeLen > 0 {
		if len(p) < idx+sizeLen {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		for _, b := range p[idx : idx+sizeLen] {
			clientSize = clientSize<<8 | uint64(b)
		}
		idx += sizeLen
	}

	fullPath, ok := st.resolvePath(path)
	if !ok {
		return uerr.Err(uerr.NRCRequestOutOfRange)
	}
	if mode != fileengine.ModeRead && st.cfg.MaxFileSize > 0 && bytesize.ByteSize(clientSize) > st.cfg.MaxFileSize {
		logger.Warn("filetransfer: upload exceeds configured max size",
			"requested", bytesize.ByteSize(clientSize).String(), "max", st.cfg.MaxFileSize.String())
		return uerr.Err(uerr.NRCRequestOutOfRange)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session != nil {
		_ = st.session.Close()
		st.session = nil
	}

	totalSize := clientSize
	if mode == fileengine.ModeRead {
		info, err := os.Stat(fullPath)
		if err != nil {
			return uerr.Err(uerr.NRCRequestOutOfRange)
		}
		totalSize = uint64(info.Size())
	}

	blockLen := st.negotiatedBlockLen()

	session, err := fileengine.Open(fullPath, mode, blockLen, totalSize)
	if err != nil {
		return uerr.Err(uerr.NRCConditionsNotCorrect)
	}
	st.session = session

	if mode == fileengine.ModeDelete {
		st.session = nil
		return uerr.Handled([]byte{uds.SIDRequestFileTransfer.ResponseSID(), byte(mode)})
	}

	body := []byte{uds.SIDRequestFileTransfer.ResponseSID(), byte(mode), 0x02, byte(blockLen >> 8), byte(blockLen)}
	return uerr.Handled(body)
}

func (st *fileTransferState) handleTransferData(ctx *server.RequestContext) uerr.Outcome {
	if len(ctx.Payload) < 2 {
		return uerr.Err(uerr.NRCIncorrectMessageLength)
	}
	seq := ctx.Payload[1]

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session == nil {
		return uerr.Err(uerr.NRCRequestSequenceError)
	}

	switch st.session.Mode {
	case fileengine.ModeAdd, fileengine.ModeReplace:
		data := ctx.Payload[2:]
		if err := st.session.WriteChunk(seq, data); err != nil {
			return uerr.Err(uerr.NRCGeneralProgrammingFailure)
		}
		st.cfg.Metrics.RecordTransferBytes("upload", len(data))
		return uerr.Handled([]byte{uds.SIDTransferData.ResponseSID(), seq})

	case fileengine.ModeRead:
		chunk, chunkSeq, ok, err := st.session.ReadChunk()
		if err != nil {
			return uerr.Err(uerr.NRCGeneralProgrammingFailure)
		}
		if !ok {
			return uerr.Handled([]byte{uds.SIDTransferData.ResponseSID(), seq})
		}
		st.cfg.Metrics.RecordTransferBytes("download", len(chunk))
		return uerr.Handled(append([]byte{uds.SIDTransferData.ResponseSID(), chunkSeq}, chunk...))

	default:
		return uerr.Err(uerr.NRCRequestSequenceError)
	}
}

func (st *fileTransferState) handleRequestTransferExit(ctx *server.RequestContext) uerr.Outcome {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session == nil {
		return uerr.Err(uerr.NRCRequestSequenceError)
	}
	session := st.session
	st.session = nil

	switch session.Mode {
	case fileengine.ModeAdd, fileengine.ModeReplace:
		if len(ctx.Payload) >= 5 {
			expected := binary.BigEndian.Uint32(ctx.Payload[1:5])
			if expected != session.CRC32() {
				_ = session.Abort()
				return uerr.Err(uerr.NRCGeneralProgrammingFailure)
			}
		}
		_ = session.Close()
		if st.cfg.Archiver != nil {
			_ = st.cfg.Archiver.ArchiveFile(context.Background(), filepath.Base(session.Path), session.Path)
		}
		return uerr.Handled([]byte{uds.SIDRequestTransferExit.ResponseSID()})

	case fileengine.ModeRead:
		_ = session.Close()
		crc := session.CRC32()
		body := []byte{uds.SIDRequestTransferExit.ResponseSID(),
			byte(crc >> 24), byte(crc >> 16), byte(crc >> 8), byte(crc)}
		return uerr.Handled(body)

	default:
		_ = session.Close()
		return uerr.Handled([]byte{uds.SIDRequestTransferExit.ResponseSID()})
	}
}

func (st *fileTransferState) handleSessionTimeout(ctx *server.RequestContext) uerr.Outcome {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.session != nil {
		_ = st.session.Close()
		st.session = nil
	}
	return uerr.Handled(nil).Observe()
}
