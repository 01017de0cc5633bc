package client

import (
	"encoding/binary"

	"github.com/udsforge/udsforge/pkg/uds"
)

// SendDiagnosticSessionControl requests SID 0x10 (spec §6).
func (c *Client) SendDiagnosticSessionControl(session uds.SessionType) error {
	return c.rawSend([]byte{uint8(uds.SIDDiagnosticSessionControl), uint8(session)}, false)
}

// SendECUReset requests SID 0x11 (spec §6).
func (c *Client) SendECUReset(reset uds.ResetType) error {
	return c.rawSend([]byte{uint8(uds.SIDECUReset), uint8(reset)}, false)
}

// SendReadDataByIdentifier requests SID 0x22 for one or more DIDs.
func (c *Client) SendReadDataByIdentifier(dids ...uint16) error {
	payload := make([]byte, 1, 1+2*len(dids))
	payload[0] = uint8(uds.SIDReadDataByIdentifier)
	for _, did := range dids {
		payload = binary.BigEndian.AppendUint16(payload, did)
	}
	return c.rawSend(payload, false)
}

// SendWriteDataByIdentifier requests SID 0x2E.
func (c *Client) SendWriteDataByIdentifier(did uint16, data []byte) error {
	payload := make([]byte, 3, 3+len(data))
	payload[0] = uint8(uds.SIDWriteDataByIdentifier)
	binary.BigEndian.PutUint16(payload[1:3], did)
	payload = append(payload, data...)
	return c.rawSend(payload, false)
}

// SecurityAccessRequestSeedSubFunc and SecurityAccessSendKeySubFunc give
// the odd (request seed) / even (send key) sub-function for a given odd
// level: the level itself requests the seed, level+1 sends the key
// (spec §4.4 "0x27").
func SecurityAccessRequestSeedSubFunc(level uint8) uint8 { return level }
func SecurityAccessSendKeySubFunc(level uint8) uint8     { return level + 1 }

// SendSecurityAccessRequestSeed requests a seed for the given odd level.
func (c *Client) SendSecurityAccessRequestSeed(level uint8) error {
	return c.rawSend([]byte{uint8(uds.SIDSecurityAccess), SecurityAccessRequestSeedSubFunc(level)}, false)
}

// SendSecurityAccessSendKey submits a computed key for the given level.
func (c *Client) SendSecurityAccessSendKey(level uint8, key []byte) error {
	payload := make([]byte, 2, 2+len(key))
	payload[0] = uint8(uds.SIDSecurityAccess)
	payload[1] = SecurityAccessSendKeySubFunc(level)
	payload = append(payload, key...)
	return c.rawSend(payload, false)
}

// CommControlType and CommCtrl values mirror spec §6's 0x28 table.
type CommControlType uint8

const (
	CommEnableRxTx           CommControlType = 0x00
	CommEnableRxDisableTx    CommControlType = 0x01
	CommDisableRxEnableTx    CommControlType = 0x02
	CommDisableRxTx          CommControlType = 0x03
	CommEnableRxDisTxEnhAddr CommControlType = 0x04
	CommDisableRxTxEnhAddr   CommControlType = 0x05
)

// CommControlScope selects Normal/NM/Both (spec §4.4 "0x28").
type CommControlScope uint8

const (
	CommScopeNormal CommControlScope = 0x01
	CommScopeNM     CommControlScope = 0x02
	CommScopeBoth   CommControlScope = 0x03
)

// SendCommunicationControl requests SID 0x28. nodeID is only meaningful
// (and only sent) for the 0x04/0x05 node-scoped control types; it goes
// on the wire as a single byte, so only its low 8 bits are sent.
func (c *Client) SendCommunicationControl(ctrl CommControlType, scope CommControlScope, nodeID *uint16) error {
	payload := []byte{uint8(uds.SIDCommunicationControl), uint8(ctrl), uint8(scope)}
	if nodeID != nil {
		payload = append(payload, uint8(*nodeID))
	}
	return c.rawSend(payload, false)
}

// SendIOControlByIdentifier requests SID 0x2F.
func (c *Client) SendIOControlByIdentifier(did uint16, action uds.IOControlAction, stateAndMask []byte) error {
	payload := make([]byte, 4, 4+len(stateAndMask))
	payload[0] = uint8(uds.SIDIOControlByIdentifier)
	binary.BigEndian.PutUint16(payload[1:3], did)
	payload[3] = uint8(action)
	payload = append(payload, stateAndMask...)
	return c.rawSend(payload, false)
}

// RoutineControlSubFunc values (spec §6 "0x31").
const (
	RoutineStart         = 0x01
	RoutineStop          = 0x02
	RoutineRequestResult = 0x03
)

// SendRoutineControl requests SID 0x31. Used by the remote-console feature
// with rid=0xF000 and option carrying the command string (spec §4.4).
func (c *Client) SendRoutineControl(subFunc uint8, rid uint16, option []byte) error {
	payload := make([]byte, 4, 4+len(option))
	payload[0] = uint8(uds.SIDRoutineControl)
	payload[1] = subFunc
	binary.BigEndian.PutUint16(payload[2:4], rid)
	payload = append(payload, option...)
	return c.rawSend(payload, false)
}

// SendTransferData requests SID 0x36.
func (c *Client) SendTransferData(seq uint8, data []byte) error {
	payload := make([]byte, 2, 2+len(data))
	payload[0] = uint8(uds.SIDTransferData)
	payload[1] = seq
	payload = append(payload, data...)
	return c.rawSend(payload, false)
}

// SendRequestTransferExit requests SID 0x37. data carries the expected
// CRC-32 on upload exit (spec §4.4 "0x37").
func (c *Client) SendRequestTransferExit(data []byte) error {
	payload := make([]byte, 1, 1+len(data))
	payload[0] = uint8(uds.SIDRequestTransferExit)
	payload = append(payload, data...)
	return c.rawSend(payload, false)
}

// SendRequestFileTransfer requests SID 0x38.
func (c *Client) SendRequestFileTransfer(mode uds.TransferMode, path string, dataFormatID uint8, fileSizeUncompressed uint64) error {
	pathBytes := []byte(path)
	payload := []byte{uint8(uds.SIDRequestFileTransfer), uint8(mode)}
	payload = append(payload, uint8(len(pathBytes)))
	payload = append(payload, pathBytes...)
	payload = append(payload, dataFormatID)
	if mode == uds.TransferAddFile || mode == uds.TransferReplaceFile {
		payload = append(payload, 0x04) // sizeLenFormat: 4-byte size field
		payload = binary.BigEndian.AppendUint32(payload, uint32(fileSizeUncompressed))
	} else {
		payload = append(payload, 0x00) // sizeLenFormat: no size field
	}
	return c.rawSend(payload, false)
}

// SendTesterPresent requests SID 0x3E. When the client's OptSuppressPosResp
// bit is set, the sub-function carries the suppress-positive-response bit
// (0x80) per spec §4.4/§8.
func (c *Client) SendTesterPresent() error {
	subFunc := uint8(0x00)
	if c.options&OptSuppressPosResp != 0 {
		subFunc |= 0x80
	}
	return c.rawSend([]byte{uint8(uds.SIDTesterPresent), subFunc}, false)
}
