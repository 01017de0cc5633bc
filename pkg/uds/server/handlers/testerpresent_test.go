package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

func TestTesterPresentRespondsWhenNotSuppressed(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterTesterPresent(s)

	resp := s.Handle([]byte{uint8(uds.SIDTesterPresent), 0x00}, false, "tester-1")
	assert.Equal(t, []byte{0x7E, 0x00}, resp)
}

func TestTesterPresentSilentWhenSuppressed(t *testing.T) {
	s := server.New(&fakeTransport{}, nil)
	RegisterTesterPresent(s)

	resp := s.Handle([]byte{uint8(uds.SIDTesterPresent), 0x80}, false, "tester-1")
	assert.Nil(t, resp)
}
