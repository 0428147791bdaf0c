package demuxer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/selectia/selectia-core/internal/actor"
)

// State is the proxy's lifecycle state (spec §4.4):
// None → Loading → {Ready | NotInstalled} → Installing → None.
type State int

const (
	StateNone State = iota
	StateLoading
	StateReady
	StateNotInstalled
	StateInstalling
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateNotInstalled:
		return "not_installed"
	case StateInstalling:
		return "installing"
	default:
		return "unknown"
	}
}

// EventKind tags a proxy-lifecycle event.
type EventKind int

const (
	// EventRustBackendDropped fires when the socket read loop errors out
	// (spec §4.4: "socket closure with error → emit RustBackendDropped").
	EventRustBackendDropped EventKind = iota
	// EventPythonBackendDropped fires when the child process exits, whether
	// cleanly or not (spec §4.4: "on child exit... emits PythonBackendDropped").
	EventPythonBackendDropped
	EventStateChanged
)

// Event is broadcast on the proxy's dispatcher whenever its connection to
// the subprocess is lost or its lifecycle state changes.
type Event struct {
	Kind  EventKind
	State State
	Err   error
}

// ErrNotReady is returned by RemoteCall when the proxy has no live
// connection to the subprocess.
var ErrNotReady = errors.New("demuxer: proxy not ready")

// environment abstracts "is the external demuxer already installed, and how
// do I install it" so tests can inject a fake without touching the
// filesystem or spawning real processes.
type environment interface {
	installed() bool
	install(ctx context.Context) error
	binaryPath() string
}

// fileEnvironment checks for an executable at a fixed path and "installs" by
// invoking a sibling `<binary>-install` program.
type fileEnvironment struct {
	path string
}

func (e *fileEnvironment) binaryPath() string { return e.path }

func (e *fileEnvironment) installed() bool {
	info, err := os.Stat(e.path)
	return err == nil && !info.IsDir()
}

func (e *fileEnvironment) install(ctx context.Context) error {
	child, err := spawnChild(ctx, e.path+"-install", 0)
	if err != nil {
		return fmt.Errorf("demuxer: install: %w", err)
	}
	return <-child.Wait()
}

// connector abstracts how the proxy obtains a byte stream to the subprocess:
// real use binds a TCP port and spawns the child; tests substitute an
// in-memory pipe.
type connector func(ctx context.Context, binaryPath string) (io.ReadWriteCloser, *childProcess, error)

func defaultConnector(ctx context.Context, binaryPath string) (io.ReadWriteCloser, *childProcess, error) {
	ln, port, err := BindLocalPort()
	if err != nil {
		return nil, nil, err
	}
	defer ln.Close()

	child, err := spawnChild(ctx, binaryPath, port)
	if err != nil {
		return nil, nil, err
	}

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- acceptResult{conn, err}
	}()

	select {
	case res := <-accepted:
		if res.err != nil {
			_ = child.Kill()
			return nil, nil, fmt.Errorf("demuxer: accept child connection: %w", res.err)
		}
		return res.conn, child, nil
	case <-ctx.Done():
		_ = child.Kill()
		return nil, nil, ctx.Err()
	}
}

// Proxy manages the external stem-demuxing subprocess and the marshalled
// remote-call table built on top of its wire protocol.
type Proxy struct {
	self      *actor.Sender[any]
	events    *actor.Dispatcher[Event]
	calls     *CallTable
	env       environment
	connect   connector
	sessionID string

	stateMu sync.RWMutex
	state   State

	connMu sync.Mutex
	conn   io.ReadWriteCloser
	child  *childProcess

	handle *Handle
}

// statusUpdateMsg drives the lifecycle state machine; the proxy sends these
// to itself (spec §9's cyclic/self-sending pattern).
type statusUpdateMsg struct{ state State }

// demuxRequestMsg is the Demux{input, output, callback} request from §4.4.
type demuxRequestMsg struct {
	input, output string
	result        *actor.CallbackSender[error]
}

// socketClosedMsg carries which side observed the drop, so handleSocketClosed
// can emit the spec's distinct RustBackendDropped/PythonBackendDropped event.
type socketClosedMsg struct {
	err    error
	source EventKind
}

// NewProxy spawns the proxy actor against binaryPath and returns the sender
// used to submit Demux requests plus a handle for remote_call and state
// introspection. events receives lifecycle notifications.
func NewProxy(ctx *actor.Context, binaryPath string, events *actor.Dispatcher[Event]) (*actor.Sender[any], *Handle) {
	return newProxy(ctx, &fileEnvironment{path: binaryPath}, defaultConnector, events)
}

func newProxy(ctx *actor.Context, env environment, connect connector, events *actor.Dispatcher[Event]) (*actor.Sender[any], *Handle) {
	p := &Proxy{
		events:    events,
		calls:     NewCallTable(),
		env:       env,
		connect:   connect,
		sessionID: uuid.NewString(),
		state:     StateNone,
	}
	sender := actor.Spawn(ctx, p.run, actor.SpawnOptions{Name: "demuxer.Proxy", InboxSize: 256})
	p.self = sender.Clone()
	p.handle = &Handle{proxy: p}
	return sender, p.handle
}

// Handle is the caller-facing surface: issue remote calls and read state
// without routing through the actor's message loop.
type Handle struct{ proxy *Proxy }

func (h *Handle) State() State { return h.proxy.currentState() }

// RemoteCall allocates a call_id, writes the Call envelope, and awaits the
// matching CallBack (spec §4.4's call-marshalling algorithm).
func (h *Handle) RemoteCall(ctx context.Context, procedureID string, payload any) (json.RawMessage, error) {
	h.proxy.connMu.Lock()
	conn := h.proxy.conn
	h.proxy.connMu.Unlock()
	if conn == nil {
		return nil, ErrNotReady
	}

	callID, receiver := h.proxy.calls.Alloc()

	h.proxy.connMu.Lock()
	err := writeCall(conn, procedureID, callID, payload)
	h.proxy.connMu.Unlock()
	if err != nil {
		h.proxy.calls.Cancel(callID)
		return nil, fmt.Errorf("demuxer: remote_call %s: %w", procedureID, err)
	}

	result, err := receiver.Wait(ctx)
	if err != nil {
		receiver.Cancel()
		h.proxy.calls.Cancel(callID)
		return nil, err
	}
	return result, nil
}

// Demux submits a Demux{input, output} request to the proxy's inbox and
// waits for it to be resolved (spec §4.4: accepted only while StateReady).
func (h *Handle) Demux(ctx context.Context, input, output string) error {
	sender, receiver := actor.NewCallback[error]()
	if err := h.proxy.self.Send(demuxRequestMsg{input: input, output: output, result: sender}); err != nil {
		return err
	}
	err, waitErr := receiver.Wait(ctx)
	if waitErr != nil {
		receiver.Cancel()
		return waitErr
	}
	return err
}

func (p *Proxy) currentState() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

func (p *Proxy) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
	if p.events != nil {
		p.events.Emit(Event{Kind: EventStateChanged, State: s})
	}
}

func (p *Proxy) run(sc *actor.ServiceContext, rx *actor.ServiceReceiver[any]) {
	if err := actor.RegisterSingleton(sc, p.handle); err != nil {
		slog.Error("demuxer: register singleton", "error", err)
	}
	_ = p.self.Send(statusUpdateMsg{state: StateNone})

	for {
		msg, ok := rx.Recv()
		if !ok {
			p.teardown()
			return
		}
		switch m := msg.(type) {
		case statusUpdateMsg:
			p.handleStatusUpdate(m.state)
		case demuxRequestMsg:
			p.handleDemuxRequest(m)
		case socketClosedMsg:
			p.handleSocketClosed(m.err, m.source)
		default:
			slog.Warn("demuxer: proxy received unknown message type", "type", fmt.Sprintf("%T", msg))
		}
	}
}

func (p *Proxy) handleStatusUpdate(state State) {
	p.setState(state)
	switch state {
	case StateNone:
		p.setState(StateLoading)
		go p.attemptLoad()
	case StateNotInstalled:
		go p.runInstaller()
	case StateReady, StateLoading, StateInstalling:
		// Ready is entered by attemptLoad once the socket is live; Loading and
		// Installing are transient states whose completion is signalled by a
		// background goroutine self-sending the next statusUpdateMsg.
	}
}

func (p *Proxy) attemptLoad() {
	if !p.env.installed() {
		_ = p.self.Send(statusUpdateMsg{state: StateNotInstalled})
		return
	}

	ctx := context.Background()
	conn, child, err := p.connect(ctx, p.env.binaryPath())
	if err != nil {
		slog.Warn("demuxer: failed to connect to subprocess", "session", p.sessionID, "error", err)
		_ = p.self.Send(statusUpdateMsg{state: StateNotInstalled})
		return
	}
	slog.Info("demuxer: subprocess connected", "session", p.sessionID)

	p.connMu.Lock()
	p.conn = conn
	p.child = child
	p.connMu.Unlock()

	go p.readLoop(conn)
	if child != nil {
		go func() {
			err := <-child.Wait()
			_ = p.self.Send(socketClosedMsg{err: err, source: EventPythonBackendDropped})
		}()
	}

	_ = p.self.Send(statusUpdateMsg{state: StateReady})
}

func (p *Proxy) runInstaller() {
	p.setState(StateInstalling)
	if err := p.env.install(context.Background()); err != nil {
		slog.Error("demuxer: install failed", "error", err)
	}
	_ = p.self.Send(statusUpdateMsg{state: StateNone})
}

func (p *Proxy) handleDemuxRequest(req demuxRequestMsg) {
	if p.currentState() != StateReady {
		req.result.Resolve(ErrNotReady)
		return
	}
	payload := map[string]string{"input": req.input, "output": req.output}
	_, err := p.handle.RemoteCall(context.Background(), "Demux", payload)
	req.result.Resolve(err)
}

// readLoop parses inbound envelopes (Ack, Log, CallBack) until the
// connection closes or a frame is malformed beyond recovery.
func (p *Proxy) readLoop(conn io.ReadWriteCloser) {
	r := bufio.NewReader(conn)
	for {
		raw, err := ReadFrame(r)
		if err != nil {
			_ = p.self.Send(socketClosedMsg{err: err, source: EventRustBackendDropped})
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("demuxer: malformed frame", "raw", string(raw), "error", err)
			continue
		}

		switch env.ID {
		case envelopeAck:
			slog.Debug("demuxer: ack", "request", env.Request)
		case envelopeLog:
			slog.Info("demuxer: subprocess log", "message", env.Message, "level", env.Level)
		case envelopeCallBack:
			p.calls.Resolve(env.CallID, env.Payload)
		default:
			slog.Warn("demuxer: unknown envelope id", "id", env.ID)
		}
	}
}

// handleSocketClosed tears the connection down and reacts to its loss. The
// read loop and the child-exit watcher both funnel into this message for the
// same underlying drop, so the first call to observe the connection already
// torn down is a duplicate notification for a drop this proxy already
// handled (or a connection that was never established) — it's logged and
// otherwise ignored, so teardown, the host-facing event, and the resulting
// state transition each happen exactly once per drop.
func (p *Proxy) handleSocketClosed(err error, source EventKind) {
	p.connMu.Lock()
	alreadyClosed := p.conn == nil && p.child == nil
	p.connMu.Unlock()
	if alreadyClosed {
		slog.Debug("demuxer: duplicate socket-closed notification ignored", "session", p.sessionID, "source", source)
		return
	}

	slog.Warn("demuxer: subprocess connection lost", "session", p.sessionID, "error", err, "source", source)
	p.teardown()
	if p.events != nil {
		p.events.Emit(Event{Kind: source, Err: err})
	}
	if err != nil {
		_ = p.self.Send(statusUpdateMsg{state: StateNotInstalled})
	} else {
		_ = p.self.Send(statusUpdateMsg{state: StateNone})
	}
}

func (p *Proxy) teardown() {
	p.connMu.Lock()
	conn := p.conn
	child := p.child
	p.conn = nil
	p.child = nil
	p.connMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if child != nil {
		_ = child.Kill()
	}
}
