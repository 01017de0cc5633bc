package handlers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/internal/paramstore"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

type fakeTransport struct{ sent [][]byte }

func (f *fakeTransport) Send(payload []byte, functional bool) error {
	f.sent = append(f.sent, payload)
	return nil
}
func (f *fakeTransport) TxInProgress() bool { return false }

func newTestStore(t *testing.T) *paramstore.Store {
	t.Helper()
	store, err := paramstore.Open(filepath.Join(t.TempDir(), "params"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRDBIReadsFromExtendedBeforeGeneral(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(paramstore.KeyspaceGeneral, 0x1234, []byte{0x01}))
	require.NoError(t, store.Set(paramstore.KeyspaceExtended, 0x1234, []byte{0x02}))

	s := server.New(&fakeTransport{}, nil)
	RegisterDataByIdentifier(s, store)

	resp := s.Handle([]byte{uint8(uds.SIDReadDataByIdentifier), 0x12, 0x34}, false, "tester-1")
	assert.Equal(t, []byte{0x62, 0x12, 0x34, 0x02}, resp)
}

func TestRDBIFallsBackToGeneral(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(paramstore.KeyspaceGeneral, 0xABCD, []byte{0x99}))

	s := server.New(&fakeTransport{}, nil)
	RegisterDataByIdentifier(s, store)

	resp := s.Handle([]byte{uint8(uds.SIDReadDataByIdentifier), 0xAB, 0xCD}, false, "tester-1")
	assert.Equal(t, []byte{0x62, 0xAB, 0xCD, 0x99}, resp)
}

func TestRDBIUnknownDIDYieldsRequestOutOfRange(t *testing.T) {
	store := newTestStore(t)
	s := server.New(&fakeTransport{}, nil)
	RegisterDataByIdentifier(s, store)

	resp := s.Handle([]byte{uint8(uds.SIDReadDataByIdentifier), 0x00, 0x01}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, byte(0x7F), resp[0])
}

func TestRDBIMultipleDIDsConcatenateResponses(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(paramstore.KeyspaceGeneral, 0x0001, []byte{0xAA}))
	require.NoError(t, store.Set(paramstore.KeyspaceGeneral, 0x0002, []byte{0xBB, 0xCC}))

	s := server.New(&fakeTransport{}, nil)
	RegisterDataByIdentifier(s, store)

	resp := s.Handle([]byte{uint8(uds.SIDReadDataByIdentifier), 0x00, 0x01, 0x00, 0x02}, false, "tester-1")
	assert.Equal(t, []byte{0x62, 0x00, 0x01, 0xAA, 0x00, 0x02, 0xBB, 0xCC}, resp)
}

func TestWDBIWritesNewDIDToGeneral(t *testing.T) {
	store := newTestStore(t)
	s := server.New(&fakeTransport{}, nil)
	RegisterDataByIdentifier(s, store)

	resp := s.Handle([]byte{uint8(uds.SIDWriteDataByIdentifier), 0x10, 0x20, 0x01, 0x02}, false, "tester-1")
	assert.Equal(t, []byte{0x6E, 0x10, 0x20}, resp)

	value, err := store.Get(paramstore.KeyspaceGeneral, 0x1020)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, value)
}

func TestWDBIOverwritesExistingExtendedDID(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set(paramstore.KeyspaceExtended, 0x5555, []byte{0x00}))

	s := server.New(&fakeTransport{}, nil)
	RegisterDataByIdentifier(s, store)

	resp := s.Handle([]byte{uint8(uds.SIDWriteDataByIdentifier), 0x55, 0x55, 0xFF}, false, "tester-1")
	assert.Equal(t, []byte{0x6E, 0x55, 0x55}, resp)

	value, err := store.Get(paramstore.KeyspaceExtended, 0x5555)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, value)
}
