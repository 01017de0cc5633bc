package commands

import (
	"strconv"
	"strings"

	"github.com/udsforge/udsforge/internal/metrics"
	"github.com/udsforge/udsforge/internal/uerr"
	"github.com/udsforge/udsforge/pkg/uds/server"
)

// metricsSink adapts *metrics.Metrics to server.EventSink, recording
// every dispatched request's outcome (spec "AMBIENT STACK" metrics via
// dittofs's prometheus wiring).
type metricsSink struct {
	m *metrics.Metrics
}

func (s metricsSink) OnRequest(event server.EventKind, outcome uerr.Outcome) {
	status := "handled"
	switch {
	case outcome.IsError():
		status = "error"
		s.m.RecordNRC(outcome.NRCode().String())
	case outcome.IsNotMine():
		status = "notmine"
	}
	s.m.RecordRequest(event.String(), status, 0)
}

func parseHexOrDec(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 32)
}
