package transaction

import "github.com/GiterLab/coap-engine/message"

// Signaling option numbers (RFC 8323 §5). Each signaling code has its
// own small option-number space, distinct from the catalog used for
// request/response options.
const (
	optCSMMaxMessageSize    uint16 = 2
	optCSMBlockWiseTransfer uint16 = 4

	optPingPongCustody uint16 = 2

	optReleaseAlternativeAddress uint16 = 2
	optReleaseHoldOff            uint16 = 4

	optAbortBadCSMOption uint16 = 2
)

// Outcome describes what the engine must do after HandleSignal
// processes one class-7 message.
type Outcome struct {
	// Reply, if non-nil, must be sent back to peer.
	Reply *message.Message
	// CloseConnection indicates the peer's connection (and all of its
	// tracked transactions) must be torn down.
	CloseConnection bool
	// InvokeDefault indicates the engine's default callback should be
	// notified of msg (Pong and Release both fall here, per spec §4.5).
	InvokeDefault bool
}

// HandleSignal implements the spec §4.5 "Signal code handling" table
// for one inbound class-7 message. It updates conn for CSM and Release,
// but does not itself send the reply or touch any transaction table —
// the caller (the engine) owns the socket and decides how
// Outcome.Reply gets transmitted and how CloseConnection is applied.
func HandleSignal(conn *ConnectionTable, peer string, msg *message.Message) Outcome {
	switch msg.Code {
	case message.SignalCSM:
		return handleCSM(conn, peer, msg)
	case message.SignalPing:
		return handlePing(msg)
	case message.SignalPong:
		return Outcome{InvokeDefault: true}
	case message.SignalRelease:
		conn.MarkReleasing(peer)
		return Outcome{InvokeDefault: true}
	case message.SignalAbort:
		return Outcome{CloseConnection: true}
	default:
		return Outcome{}
	}
}

func handleCSM(conn *ConnectionTable, peer string, msg *message.Message) Outcome {
	maxSize := uint32(0)
	if opt, ok := msg.Options.Get(optCSMMaxMessageSize); ok {
		maxSize = opt.Uint()
	}
	_, blockWise := msg.Options.Get(optCSMBlockWiseTransfer)

	for _, opt := range msg.Options.All() {
		switch opt.Number {
		case optCSMMaxMessageSize, optCSMBlockWiseTransfer:
			continue
		default:
			if message.IsCritical(opt.Number) {
				return Outcome{Reply: abortMessage("unknown critical CSM option"), CloseConnection: true}
			}
		}
	}

	conn.UpdateCSM(peer, maxSize, blockWise)
	return Outcome{}
}

func handlePing(msg *message.Message) Outcome {
	reply := &message.Message{Code: message.SignalPong, Token: msg.Token}
	if custody, ok := msg.Options.Get(optPingPongCustody); ok {
		reply.Options.Add(custody)
	}
	return Outcome{Reply: reply}
}

func abortMessage(diagnostic string) *message.Message {
	m := &message.Message{Code: message.SignalAbort}
	if diagnostic != "" {
		m.Payload = []byte(diagnostic)
	}
	return m
}
