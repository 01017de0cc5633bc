package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for a UDS request/response span, the same role
// dittofs's AttrNFS* constants play for an NFS procedure span.
const (
	AttrTxID          = "uds.tx_id"
	AttrEvent         = "uds.event"
	AttrSID           = "uds.sid"
	AttrRSID          = "uds.rsid"
	AttrNRC           = "uds.nrc"
	AttrSession       = "uds.session"
	AttrSecurityLevel = "uds.security_level"
	AttrDID           = "uds.did"
	AttrRID           = "uds.rid"
	AttrClientAddr    = "uds.client_addr"
	AttrFunctional    = "uds.functional"
)

// SpanRequest is the root span name for one dispatched UDS request,
// the same role dittofs's SpanNFSRequest plays for one NFS call.
const SpanRequest = "uds.request"

func TxID(id string) attribute.KeyValue       { return attribute.String(AttrTxID, id) }
func Event(name string) attribute.KeyValue    { return attribute.String(AttrEvent, name) }
func SID(sid uint8) attribute.KeyValue        { return attribute.Int64(AttrSID, int64(sid)) }
func RSID(rsid uint8) attribute.KeyValue      { return attribute.Int64(AttrRSID, int64(rsid)) }
func NRC(nrc uint8) attribute.KeyValue        { return attribute.Int64(AttrNRC, int64(nrc)) }
func Session(name string) attribute.KeyValue  { return attribute.String(AttrSession, name) }
func SecurityLevel(l uint8) attribute.KeyValue { return attribute.Int64(AttrSecurityLevel, int64(l)) }
func DID(did uint16) attribute.KeyValue       { return attribute.Int64(AttrDID, int64(did)) }
func RID(rid uint16) attribute.KeyValue       { return attribute.Int64(AttrRID, int64(rid)) }
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}
func Functional(b bool) attribute.KeyValue { return attribute.Bool(AttrFunctional, b) }

// StartRequestSpan starts the root span for one dispatched UDS
// request, the tracing counterpart of the per-request logger.LogContext
// the dispatcher already builds in pkg/uds/server/server.go.
func StartRequestSpan(ctx context.Context, txID string, sid uint8, clientAddr string, functional bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRequest, trace.WithAttributes(
		TxID(txID),
		SID(sid),
		ClientAddr(clientAddr),
		Functional(functional),
	))
}
