package isotp

import (
	"fmt"
	"time"
)

// FrameSink is the external collaborator that actually puts a frame on the
// wire. CAN driver integration is out of scope (spec §1); Binding only
// depends on this narrow contract.
type FrameSink interface {
	SendFrame(f Frame) error
}

// Channel selects which of the two independent addressing paths a
// request/response travels on (spec §4.1).
type Channel int

const (
	ChannelPhysical Channel = iota
	ChannelFunctional
)

// txState tracks one in-flight segmented transmit.
type txState struct {
	active    bool
	channel   Channel
	id        uint32
	payload   []byte
	sent      int
	nextSeq   uint8
	waitingFC bool
	bsLeft    uint8
	lastSend  time.Time
	stMin     time.Duration
}

// rxState tracks one in-flight segmented receive.
type rxState struct {
	active   bool
	total    int
	got      int
	buf      []byte
	expSeq   uint8
	lastSeen time.Time
}

// Binding drives ISO-TP segmentation/reassembly for one UDS peer. It owns a
// physical and a functional receive channel and a single transmit channel
// (a peer sends on one address at a time), per spec §3/§4.1.
type Binding struct {
	addrs    AddressSet
	fc       FlowControlParams
	sink     FrameSink
	isServer bool // server listens on PhysSource+FuncSource, replies on PhysTarget; client is the mirror

	tx  txState
	rxP rxState // physical reassembly
	rxF rxState // functional reassembly (unused: functional requests are always Single Frame)

	// completed holds a fully reassembled payload and its channel, cleared
	// once the caller consumes it via TakeReceived.
	completedPayload []byte
	completedChannel Channel

	// txJustFinished is set when the final consecutive frame of a segmented
	// transmit goes out, and consumed by the next Poll to emit
	// StatusTxComplete exactly once.
	txJustFinished bool

	rxTimeout time.Duration
}

// NewBinding constructs a Binding. isServer selects which identifier this
// side listens/replies on: the client listens on PhysTarget and sends on
// PhysSource/FuncSource; the server listens on PhysSource/FuncSource and
// sends on PhysTarget.
func NewBinding(addrs AddressSet, fc FlowControlParams, sink FrameSink, isServer bool) *Binding {
	return &Binding{
		addrs:     addrs,
		fc:        fc,
		sink:      sink,
		isServer:  isServer,
		rxTimeout: 1000 * time.Millisecond,
	}
}

// listenIDs returns the CAN IDs this side should accept requests on.
func (b *Binding) listenIDs() (phys, functional uint32) {
	if b.isServer {
		return b.addrs.PhysSource, b.addrs.FuncSource
	}
	return b.addrs.PhysTarget, 0 // client does not listen on a functional id
}

// replyID returns the CAN ID this side sends on for physical traffic.
func (b *Binding) replyID() uint32 {
	if b.isServer {
		return b.addrs.PhysTarget
	}
	return b.addrs.PhysSource
}

// Send transmits payload, starting segmentation if it doesn't fit a Single
// Frame. Returns an error if a transmit is already in progress (the spec's
// "no more than one outstanding transaction" invariant applies per binding).
func (b *Binding) Send(payload []byte, functional bool) error {
	if b.tx.active {
		return fmt.Errorf("isotp: transmit already in progress")
	}

	channel := ChannelPhysical
	id := b.replyID()
	if functional {
		channel = ChannelFunctional
		id = b.addrs.FuncSource
	}

	if len(payload) <= maxSingleFramePayload {
		frame, err := encodeSingleFrame(payload)
		if err != nil {
			return err
		}
		return b.sink.SendFrame(Frame{ID: id, Data: frame})
	}

	if functional {
		return fmt.Errorf("isotp: functional addressing does not support segmented transfers")
	}

	ff, err := encodeFirstFrame(len(payload), payload)
	if err != nil {
		return err
	}
	if err := b.sink.SendFrame(Frame{ID: id, Data: ff}); err != nil {
		return err
	}

	b.tx = txState{
		active:    true,
		channel:   channel,
		id:        id,
		payload:   payload,
		sent:      maxFirstFramePayload,
		nextSeq:   1,
		waitingFC: true,
		bsLeft:    b.fc.BlockSize,
		lastSend:  time.Now(),
		stMin:     b.fc.STmin,
	}
	return nil
}

// TxInProgress reports whether a segmented transmit is still running; the
// server poll loop uses this to pick a zero sleep timeout to keep the bus
// full (spec §5 "Server").
func (b *Binding) TxInProgress() bool { return b.tx.active }

// RxInProgress reports whether a physical segmented receive is underway;
// while true, incoming functional frames must be dropped (spec §4.1).
func (b *Binding) RxInProgress() bool { return b.rxP.active }

// Deliver feeds one received CAN frame into the binding. id selects which
// logical channel (physical vs functional) the frame arrived on, resolved
// by the caller from the CAN identifier (spec §5 "Server" consumer thread).
func (b *Binding) Deliver(id uint32, data []byte) error {
	physID, funcID := b.listenIDs()

	switch {
	case id == physID:
		return b.deliverPhysical(data)
	case funcID != 0 && id == funcID:
		if b.rxP.active {
			// physical segmented receive in progress: drop functional frames.
			return nil
		}
		return b.deliverFunctional(data)
	case !b.isServer && id == b.addrs.PhysSource:
		// client side flow-control arriving on its own request id path is
		// not expected; ignore.
		return nil
	default:
		return nil
	}
}

func (b *Binding) deliverPhysical(data []byte) error {
	df, err := decodeFrame(data)
	if err != nil {
		return err
	}
	switch df.pciType {
	case pciSingleFrame:
		b.completedPayload = append([]byte(nil), df.data...)
		b.completedChannel = ChannelPhysical
		return nil
	case pciFirstFrame:
		b.rxP = rxState{
			active:   true,
			total:    df.ffTotalLen,
			got:      len(df.data),
			buf:      append([]byte(nil), df.data...),
			expSeq:   1,
			lastSeen: time.Now(),
		}
		// Immediately grant a Flow Control continuing the transfer
		// (BS/STmin as configured) — classic ISO-TP responder behaviour.
		fc := encodeFlowControl(fsContinueToSend, b.fc.BlockSize, stMinByte(b.fc.STmin))
		return b.sink.SendFrame(Frame{ID: b.replyID(), Data: fc})
	case pciConsecutiveFrame:
		if !b.rxP.active {
			return nil
		}
		if df.cfSeq != b.rxP.expSeq {
			// Out-of-sequence consecutive frame: abandon reassembly: the
			// caller observes this as a transport error on next Poll.
			b.rxP = rxState{}
			return fmt.Errorf("isotp: consecutive frame sequence mismatch")
		}
		remaining := b.rxP.total - b.rxP.got
		take := len(df.data)
		if take > remaining {
			take = remaining
		}
		b.rxP.buf = append(b.rxP.buf, df.data[:take]...)
		b.rxP.got += take
		b.rxP.expSeq = (b.rxP.expSeq + 1) & 0x0F
		b.rxP.lastSeen = time.Now()
		if b.rxP.got >= b.rxP.total {
			b.completedPayload = b.rxP.buf
			b.completedChannel = ChannelPhysical
			b.rxP = rxState{}
		}
		return nil
	case pciFlowControl:
		return b.handleFlowControl(df)
	}
	return nil
}

func (b *Binding) deliverFunctional(data []byte) error {
	df, err := decodeFrame(data)
	if err != nil {
		return err
	}
	// Functional requests are broadcast and must fit a Single Frame
	// (ISO 15765-2 restricts functional addressing to unsegmented
	// transfers); anything else is ignored rather than reassembled.
	if df.pciType != pciSingleFrame {
		return nil
	}
	b.completedPayload = append([]byte(nil), df.data...)
	b.completedChannel = ChannelFunctional
	return nil
}

func (b *Binding) handleFlowControl(df decodedFrame) error {
	if !b.tx.active || !b.tx.waitingFC {
		return nil
	}
	switch df.fcStatus {
	case fsWait:
		return nil // stay waiting
	case fsOverflow:
		b.tx = txState{}
		return fmt.Errorf("isotp: flow control overflow")
	case fsContinueToSend:
		b.tx.waitingFC = false
		b.tx.bsLeft = df.fcBS
		b.tx.stMin = stMinFromByte(df.fcSTmin)
		return nil
	}
	return nil
}

// Poll advances pending segmentation/reassembly timers and returns the
// accumulated status bits. It must be called frequently by the owner's
// poll loop (spec §4.1, §5).
func (b *Binding) Poll() Status {
	var status Status

	if b.rxP.active && time.Since(b.rxP.lastSeen) > b.rxTimeout {
		b.rxP = rxState{}
		status |= StatusTportErr
	}

	if b.tx.active && !b.tx.waitingFC {
		if time.Since(b.tx.lastSend) >= b.tx.stMin {
			if err := b.sendNextConsecutive(); err != nil {
				status |= StatusTportErr
				b.tx = txState{}
			}
		}
	}

	if b.completedPayload != nil {
		status |= StatusRxComplete
	}
	if !b.tx.active && status&StatusTportErr == 0 && b.txJustFinished {
		status |= StatusTxComplete
		b.txJustFinished = false
	}

	return status
}

func (b *Binding) sendNextConsecutive() error {
	remaining := b.tx.payload[b.tx.sent:]
	chunk := remaining
	if len(chunk) > maxConsecutiveFramePayload {
		chunk = chunk[:maxConsecutiveFramePayload]
	}
	frame, err := encodeConsecutiveFrame(b.tx.nextSeq, chunk)
	if err != nil {
		return err
	}
	if err := b.sink.SendFrame(Frame{ID: b.tx.id, Data: frame}); err != nil {
		return err
	}
	b.tx.sent += len(chunk)
	b.tx.nextSeq = (b.tx.nextSeq + 1) & 0x0F
	b.tx.lastSend = time.Now()

	if b.tx.bsLeft > 0 {
		b.tx.bsLeft--
		if b.tx.bsLeft == 0 {
			b.tx.waitingFC = true
		}
	}

	if b.tx.sent >= len(b.tx.payload) {
		b.tx = txState{}
		b.txJustFinished = true
	}
	return nil
}

// TakeReceived returns and clears the most recently reassembled payload, if
// any, along with the channel it arrived on.
func (b *Binding) TakeReceived() ([]byte, Channel, bool) {
	if b.completedPayload == nil {
		return nil, 0, false
	}
	p, c := b.completedPayload, b.completedChannel
	b.completedPayload = nil
	return p, c, true
}

func stMinByte(d time.Duration) byte {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > 0x7F {
		ms = 0x7F
	}
	return byte(ms)
}

func stMinFromByte(v byte) time.Duration {
	if v <= 0x7F {
		return time.Duration(v) * time.Millisecond
	}
	// 0xF1-0xF9 encode 100-900 microseconds; anything else is reserved and
	// treated as "no minimum".
	if v >= 0xF1 && v <= 0xF9 {
		return time.Duration(v-0xF0) * 100 * time.Microsecond
	}
	return 0
}
