package engine

import (
	"fmt"

	"github.com/GiterLab/coap-engine/internal/telemetry"
	"github.com/GiterLab/coap-engine/message"
	"github.com/GiterLab/coap-engine/observe"
	"github.com/GiterLab/coap-engine/resource"
	"github.com/GiterLab/coap-engine/transaction"
)

// Config bundles the fixed-capacity table sizes and transmission
// parameters an Engine is built with (spec §3's "fixed-capacity
// tables" requirement — every limit here is chosen once, up front,
// never grown at runtime).
type Config struct {
	TransactionCapacity int
	ReliableCapacity    int
	ConnectionCapacity  int
	SendBufferSize      int
	Transmission        transaction.Config
	// Reliable selects RFC 8323 framing semantics (signaling, no
	// retransmission) over plain RFC 7252 UDP semantics.
	Reliable bool
}

// DefaultConfig mirrors the RFC 7252 transmission defaults with modest
// table sizes suitable for a constrained device.
var DefaultConfig = Config{
	TransactionCapacity: 16,
	ReliableCapacity:    16,
	ConnectionCapacity:  8,
	SendBufferSize:      1152,
	Transmission:        transaction.DefaultConfig,
}

// DefaultCallback is invoked for inbound traffic that does not
// correlate to any tracked transaction: unsolicited requests are
// routed to resource dispatch instead, so this fires for Pong,
// Release, and any other message with nowhere else to go.
type DefaultCallback func(peer string, msg *message.Message)

// Engine is the cooperative, single-threaded event loop described in
// spec §5: it owns the socket, the transaction/connection tables, and
// the resource tree for the lifetime of the process, and advances them
// one Run call at a time.
type Engine struct {
	socket PacketSocket
	root   *resource.Node
	clock  Clock

	cfg       Config
	txTable   *transaction.Table
	relTbl    *transaction.ReliableTable
	connTbl   *transaction.ConnectionTable
	separate  *separateTable
	observers map[*resource.Node]*observe.Registry

	metrics   *Metrics
	onDefault DefaultCallback

	sendBuf []byte
	recvBuf []byte
}

// New builds an Engine bound to socket and root. clock and rng drive
// the transaction table's timing and jitter; pass engine.SystemClock{}
// and engine.SystemRNG{} in production, fakes in tests.
func New(socket PacketSocket, root *resource.Node, clock Clock, rng RNG, cfg Config) *Engine {
	e := &Engine{
		socket:    socket,
		root:      root,
		clock:     clock,
		cfg:       cfg,
		relTbl:    transaction.NewReliableTable(cfg.ReliableCapacity, clock),
		connTbl:   transaction.NewConnectionTable(cfg.ConnectionCapacity),
		separate:  newSeparateTable(),
		observers: make(map[*resource.Node]*observe.Registry),
		sendBuf:   make([]byte, cfg.SendBufferSize),
		recvBuf:   make([]byte, cfg.SendBufferSize),
	}
	e.txTable = transaction.NewTable(cfg.TransactionCapacity, cfg.Transmission, clock, rng, e.rawSend)
	return e
}

// SetMetrics attaches Prometheus instrumentation for the engine's own
// dispatch/notify path. A nil Metrics is a valid no-op sink.
func (e *Engine) SetMetrics(m *Metrics) {
	e.metrics = m
}

// SetTransactionMetrics attaches Prometheus instrumentation to the
// underlying confirmable-exchange transaction table.
func (e *Engine) SetTransactionMetrics(m *transaction.Metrics) {
	e.txTable.SetMetrics(m)
}

// SetDefaultCallback installs the handler invoked for inbound messages
// that don't correlate to a pending transaction or a resource request
// (spec §2's "default" demultiplexing path).
func (e *Engine) SetDefaultCallback(fn DefaultCallback) {
	e.onDefault = fn
}

// ObserverRegistry returns (creating if necessary) the observer
// registry for node, so a resource handler can register/deregister
// subscribers and the notifier can look up who to notify.
func (e *Engine) ObserverRegistry(node *resource.Node) *observe.Registry {
	r, ok := e.observers[node]
	if !ok {
		r = observe.NewRegistry()
		e.observers[node] = r
	}
	return r
}

// CaptureSeparateResponse implements resource.Engine.
func (e *Engine) CaptureSeparateResponse(peer string, req *message.Message) resource.SeparateHandle {
	return e.separate.capture(peer, req)
}

// SubmitSeparateResponse transmits a deferred response previously
// promised via a resource.ResponseBuilder.SerializeEmptyAck call,
// using the captured (peer, token, type) context identified by handle.
func (e *Engine) SubmitSeparateResponse(handle resource.SeparateHandle, resp *message.Message) error {
	ctx, ok := e.separate.resolve(handle)
	if !ok {
		return ErrSeparateHandleNotFound
	}
	resp.Token = ctx.token
	if resp.Type == 0 {
		resp.Type = ctx.typ
	}
	return e.send(ctx.peer, resp)
}

// SubmitRequest serializes and sends msg to peer, tracking it as a
// confirmable transaction (msg.Type == Confirmable) or firing cb
// immediately for non-confirmable sends.
func (e *Engine) SubmitRequest(peer string, msg *message.Message, cb transaction.Callback) error {
	n, err := msg.Serialize(e.sendBuf)
	if err != nil {
		return fmt.Errorf("engine: serialize request: %w", err)
	}
	raw := append([]byte(nil), e.sendBuf[:n]...)

	if msg.Type != message.Confirmable {
		if err := e.socket.Send(raw, peer); err != nil {
			return fmt.Errorf("%w: %s", ErrSendFailed, err)
		}
		if cb != nil {
			cb(nil, transaction.StatusSuccess)
		}
		return nil
	}

	idx, err := e.txTable.Allocate()
	if err != nil {
		return err
	}
	if err := e.socket.Send(raw, peer); err != nil {
		return fmt.Errorf("%w: %s", ErrSendFailed, err)
	}
	return e.txTable.Submit(idx, peer, msg, raw, cb)
}

// send is the shared unconfirmed-transmit path for responses and
// notifications, which never go through the transaction table.
func (e *Engine) send(peer string, msg *message.Message) error {
	n, err := msg.Serialize(e.sendBuf)
	if err != nil {
		return fmt.Errorf("engine: serialize response: %w", err)
	}
	if err := e.socket.Send(e.sendBuf[:n], peer); err != nil {
		return fmt.Errorf("%w: %s", ErrSendFailed, err)
	}
	e.metrics.responded()
	return nil
}

func (e *Engine) rawSend(peer string, raw []byte) error {
	return e.socket.Send(raw, peer)
}

// Run drains up to timeoutMS of waiting socket activity, processes
// every ready datagram through the demultiplexer, runs one Tick pass
// across the transaction tables, and reports whether the caller should
// keep running (false only once the socket has been closed out from
// under the engine).
func (e *Engine) Run(timeoutMS int) (bool, error) {
	ready, err := e.socket.Wait(timeoutMS)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrReceiveFailed, err)
	}
	if ready {
		for {
			n, peer, err := e.socket.Receive(e.recvBuf)
			if err == ErrWouldBlock {
				break
			}
			if err != nil {
				return false, fmt.Errorf("%w: %s", ErrReceiveFailed, err)
			}
			e.handleIncoming(peer, e.recvBuf[:n])
		}
	}

	now := e.clock.Now()
	e.txTable.Tick(now)
	e.relTbl.Tick(now)
	return e.socket.IsOpen(), nil
}

func (e *Engine) handleIncoming(peer string, raw []byte) {
	var (
		m   message.Message
		err error
	)
	if e.cfg.Reliable {
		m, _, err = message.ParseStreamFrame(raw)
	} else {
		m, _, err = message.Parse(raw)
	}
	if err != nil {
		e.metrics.framingError()
		telemetry.TraceError("[coap] dropping malformed message from %s: %s", peer, err)
		return
	}

	if m.Code.Class() == 7 {
		e.handleSignal(peer, &m)
		return
	}

	if m.IsEmpty() && m.Type != message.Acknowledgement && m.Type != message.Reset {
		// bare keepalive on reliable transport; nothing to do.
		return
	}

	if m.Code.Class() == 0 && m.Code != message.Empty {
		e.handleRequest(peer, &m)
		return
	}

	if e.txTable.Match(peer, &m) {
		return
	}
	if e.relTbl.Match(peer, &m) {
		return
	}
	if e.onDefault != nil {
		e.onDefault(peer, &m)
	}
}

func (e *Engine) handleSignal(peer string, m *message.Message) {
	e.metrics.signaled()
	outcome := transaction.HandleSignal(e.connTbl, peer, m)
	if outcome.Reply != nil {
		if err := e.send(peer, outcome.Reply); err != nil {
			telemetry.TraceError("[coap] signal reply to %s failed: %s", peer, err)
		}
	}
	if outcome.CloseConnection {
		e.relTbl.CloseConnection(peer)
		e.connTbl.Close(peer)
	}
	if outcome.InvokeDefault && e.onDefault != nil {
		e.onDefault(peer, m)
	}
}

func (e *Engine) handleRequest(peer string, m *message.Message) {
	e.metrics.dispatched()
	rb := resource.Dispatch(e.root, m, e.cfg.Reliable, e, peer)
	resp := rb.Message()
	// A separate response's empty ack still goes out over the wire now;
	// the real answer follows later via SubmitSeparateResponse.
	if err := e.send(peer, &resp); err != nil {
		telemetry.TraceError("[coap] response to %s failed: %s", peer, err)
	}
}

// Notify pushes a fresh Observe notification to every subscriber of
// node whose last-seen sequence makes the new one fresh (spec §4.7).
// payload and code are the new representation; the engine derives and
// stamps each subscriber's Observe option value itself.
func (e *Engine) Notify(node *resource.Node, code message.Code, payload []byte, sequence uint32) {
	reg := e.ObserverRegistry(node)
	now := e.clock.Now()
	for _, obs := range reg.All() {
		if !reg.ShouldDeliver(obs.Peer, obs.Token, sequence, now) {
			continue
		}
		notif := &message.Message{
			Type:    message.NonConfirmable,
			Code:    code,
			Token:   []byte(obs.Token),
			Payload: payload,
		}
		if !e.cfg.Reliable {
			notif.Options.Add(message.NewUint(message.Observe, sequence))
		}
		if err := e.send(obs.Peer, notif); err != nil {
			telemetry.TraceError("[coap] notify %s failed: %s", obs.Peer, err)
			continue
		}
		e.metrics.notified()
		reg.MarkNotified(obs.Peer, obs.Token, sequence, now)
	}
}
