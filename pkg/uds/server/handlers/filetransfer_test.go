package handlers

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

func requestFileTransferPayload(mode uds.TransferMode, path string, size uint64) []byte {
	body := []byte{uint8(uds.SIDRequestFileTransfer), byte(mode), byte(len(path))}
	body = append(body, []byte(path)...)
	body = append(body, 0x00) // dataFormatId
	if size == 0 {
		return append(body, 0x00)
	}
	sizeBytes := []byte{byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)}
	body = append(body, 0x04)
	return append(body, sizeBytes...)
}

func TestFileTransferUploadRoundTripVerifiesCRC(t *testing.T) {
	dir := t.TempDir()
	s := server.New(&fakeTransport{}, nil)
	RegisterFileTransfer(s, FileTransferConfig{BaseDir: dir, ChunkSize: 64})

	data := []byte("hello udsforge")
	resp := s.Handle(requestFileTransferPayload(uds.TransferAddFile, "upload.bin", uint64(len(data))), false, "tester-1")
	require.NotNil(t, resp)
	assert.Equal(t, byte(0x78), resp[0])

	chunk := append([]byte{uint8(uds.SIDTransferData), 0x01}, data...)
	resp = s.Handle(chunk, false, "tester-1")
	assert.Equal(t, []byte{0x76, 0x01}, resp)

	crc := crc32.ChecksumIEEE(data)
	exit := []byte{uint8(uds.SIDRequestTransferExit),
		byte(crc >> 24), byte(crc >> 16), byte(crc >> 8), byte(crc)}
	resp = s.Handle(exit, false, "tester-1")
	assert.Equal(t, []byte{0x77}, resp)

	written, err := os.ReadFile(filepath.Join(dir, "upload.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestFileTransferUploadCRCMismatchRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	s := server.New(&fakeTransport{}, nil)
	RegisterFileTransfer(s, FileTransferConfig{BaseDir: dir, ChunkSize: 64})

	data := []byte("payload")
	s.Handle(requestFileTransferPayload(uds.TransferAddFile, "bad.bin", uint64(len(data))), false, "tester-1")
	chunk := append([]byte{uint8(uds.SIDTransferData), 0x01}, data...)
	s.Handle(chunk, false, "tester-1")

	exit := []byte{uint8(uds.SIDRequestTransferExit), 0xDE, 0xAD, 0xBE, 0xEF}
	resp := s.Handle(exit, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x72), resp[2])

	_, err := os.Stat(filepath.Join(dir, "bad.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileTransferDownloadReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("downloaded content")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dl.bin"), data, 0o644))

	s := server.New(&fakeTransport{}, nil)
	RegisterFileTransfer(s, FileTransferConfig{BaseDir: dir, ChunkSize: 64})

	resp := s.Handle(requestFileTransferPayload(uds.TransferReadFile, "dl.bin", 0), false, "tester-1")
	require.NotNil(t, resp)

	chunkResp := s.Handle([]byte{uint8(uds.SIDTransferData), 0x01}, false, "tester-1")
	require.NotNil(t, chunkResp)
	assert.Equal(t, data, chunkResp[2:])

	exit := s.Handle([]byte{uint8(uds.SIDRequestTransferExit)}, false, "tester-1")
	require.Len(t, exit, 5)
	gotCRC := binary.BigEndian.Uint32(exit[1:5])
	assert.Equal(t, crc32.ChecksumIEEE(data), gotCRC)
}

func TestFileTransferSessionTimeoutReleasesHandle(t *testing.T) {
	dir := t.TempDir()
	s := server.New(&fakeTransport{}, nil)
	RegisterFileTransfer(s, FileTransferConfig{BaseDir: dir, ChunkSize: 64})

	s.Handle(requestFileTransferPayload(uds.TransferAddFile, "partial.bin", 5), false, "tester-1")
	s.Session = uds.SessionExtended
	s.PollSessionTimeout()

	resp := s.Handle(requestFileTransferPayload(uds.TransferAddFile, "partial.bin", 5), false, "tester-1")
	require.NotNil(t, resp)
	assert.Equal(t, byte(0x78), resp[0])
}
