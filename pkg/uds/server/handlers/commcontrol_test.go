package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

func TestCommControlGlobalBothScopesAffectBothChannels(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterCommunicationControl(s, 0x01)

	resp := s.Handle([]byte{uint8(uds.SIDCommunicationControl), 0x03, 0x03}, false, "tester-1")
	assert.Equal(t, []byte{0x68, 0x03}, resp)
	assert.Equal(t, server.CommDisableRxTx, s.NormalComm)
	assert.Equal(t, server.CommDisableRxTx, s.NMComm)
}

func TestCommControlNodeScopedIgnoredWhenNodeMismatch(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterCommunicationControl(s, 0x01)
	before := s.NormalComm

	resp := s.Handle([]byte{uint8(uds.SIDCommunicationControl), 0x04, 0x01, 0x02}, false, "tester-1")
	require.NotNil(t, resp)
	assert.Equal(t, []byte{0x68, 0x04}, resp)
	assert.Equal(t, before, s.NormalComm)
}

func TestCommControlNodeScopedAppliesOnMatch(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterCommunicationControl(s, 0x02)

	resp := s.Handle([]byte{uint8(uds.SIDCommunicationControl), 0x04, 0x01, 0x02}, false, "tester-1")
	assert.Equal(t, []byte{0x68, 0x04}, resp)
	assert.Equal(t, server.CommEnableRxDisableTx, s.NormalComm)
}

func TestCommControlUnknownSubfunctionYieldsRequestOutOfRange(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterCommunicationControl(s, 0x01)

	resp := s.Handle([]byte{uint8(uds.SIDCommunicationControl), 0x7F, 0x01}, false, "tester-1")
	require.Len(t, resp, 3)
	assert.Equal(t, uint8(0x31), resp[2])
}
