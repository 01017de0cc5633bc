package handlers

import (
	"encoding/binary"

	"github.com/udsforge/udsforge/internal/paramstore"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// RegisterDataByIdentifier wires the SID 0x22 ReadDataByIdentifier and
// SID 0x2E WriteDataByIdentifier handlers against a shared paramstore.
// Both follow the spec's multi-backend lookup strategy (spec §4.4
// "0x22 RDBI / 0x2E WDBI"): try the "extended" keyspace first, and only
// consult "general" when the DID isn't defined there.
func RegisterDataByIdentifier(s *server.Server, store *paramstore.Store) {
	s.Register(server.EventReadDataByIdentifier, server.PriorityNormal, "rdbi", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 3 || (len(ctx.Payload)-1)%2 != 0 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}

		body := []byte{uds.SIDReadDataByIdentifier.ResponseSID()}
		for i := 1; i < len(ctx.Payload); i += 2 {
			did := binary.BigEndian.Uint16(ctx.Payload[i : i+2])

			value, err := lookupDID(store, did)
			if err != nil {
				return uerr.Err(uerr.NRCRequestOutOfRange)
			}

			body = append(body, byte(did>>8), byte(did))
			body = append(body, value...)
		}
		return uerr.Handled(body)
	})

	s.Register(server.EventWriteDataByIdentifier, server.PriorityNormal, "wdbi", func(ctx *server.RequestContext) uerr.Outcome {
		if len(ctx.Payload) < 3 {
			return uerr.Err(uerr.NRCIncorrectMessageLength)
		}
		did := binary.BigEndian.Uint16(ctx.Payload[1:3])
		data := ctx.Payload[3:]

		ks := paramstore.KeyspaceGeneral
		if store.Has(paramstore.KeyspaceExtended, did) {
			ks = paramstore.KeyspaceExtended
		}
		if err := store.Set(ks, did, data); err != nil {
			return uerr.Err(uerr.NRCConditionsNotCorrect)
		}

		return uerr.Handled([]byte{
			uds.SIDWriteDataByIdentifier.ResponseSID(),
			byte(did >> 8), byte(did),
		})
	})
}

// lookupDID implements the "try extended, fall back to general" strategy
// shared by RDBI's per-DID loop.
func lookupDID(store *paramstore.Store, did uint16) ([]byte, error) {
	value, err := store.Get(paramstore.KeyspaceExtended, did)
	if err == nil {
		return value, nil
	}
	return store.Get(paramstore.KeyspaceGeneral, did)
}
