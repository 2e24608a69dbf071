package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luma/resp3d/command"
	"github.com/luma/resp3d/protocol"
	"github.com/luma/resp3d/storage"
)

const (
	writeQueueSize = 127
	maxWriteBatch  = 64

	// acceptBackoff is how long to wait after a temporary Accept error.
	acceptBackoff = 5 * time.Millisecond

	protocolErrorPrefix = "Protocol error: "
)

var (
	ErrConnClosed     = errors.New("connection is closed")
	ErrWriteQueueFull = errors.New("write queue is full")
	ErrAlreadyStarted = errors.New("server already started")

	rateLimitedReply = protocol.SanitizedError(command.CodeErr, "rate limit exceeded")
)

// connConfig is shared by every connection of a TCP server.
type connConfig struct {
	decoderOptions []protocol.DecoderOption
	limiter        *ipRateLimiter
	handler        *handler
	trace          bool

	lastConnID int64
}

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr      string
	reuseport bool

	numListeners int
	listeners    []*TCPListener

	conf  *connConfig
	store storage.Store

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if !options.Reuseport {
		numListeners = 1
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	conf := &connConfig{
		handler: &handler{store: options.Store, log: log.Named("handler")},
		trace:   options.Trace,
	}

	if options.MaxPayloadSize > 0 {
		conf.decoderOptions = append(conf.decoderOptions, protocol.WithMaxPayloadSize(options.MaxPayloadSize))
	}

	if options.MaxDepth > 0 {
		conf.decoderOptions = append(conf.decoderOptions, protocol.WithMaxDepth(options.MaxDepth))
	}

	if options.RateLimit > 0 {
		conf.limiter = newIPRateLimiter(rate.Limit(options.RateLimit), options.RateBurst)
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:    options.Reuseport,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		conf:         conf,
		store:        options.Store,
		log:          log,
	}
}

// Start binds every listener and starts accepting connections. It returns
// once the server is listening.
//
// Cancelling ctx stops accepting new connections. Open connections are
// served until Shutdown or Close, so replies already queued still go out.
func (w *TCP) Start(ctx context.Context) error {
	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	serverCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		if err := w.startListener(serverCtx); err != nil {
			return multierr.Append(err, w.Close())
		}
	}

	w.stopWaiter.Add(1)
	go func() {
		defer w.stopWaiter.Done()

		select {
		case <-ctx.Done():
			w.log.Info("Context done, no longer accepting connections")
			if err := w.closeListeners(); err != nil {
				w.log.Warn("Failed to close listeners", zap.Error(err))
			}

		case <-serverCtx.Done():
		}
	}()

	updates := w.store.ListenToUpdates()

	w.stopWaiter.Add(1)
	go func() {
		defer w.stopWaiter.Done()
		defer w.store.StopListening(updates)

		w.broadcastUpdates(serverCtx, updates)
	}()

	return nil
}

// Addr returns the address the server listens on. It is only valid after
// Start.
func (w *TCP) Addr() net.Addr {
	if len(w.listeners) == 0 {
		return nil
	}

	return w.listeners[0].Addr()
}

func (t *TCP) Store() storage.Store {
	return t.store
}

func (w *TCP) startListener(ctx context.Context) error {
	listener, err := w.listen()
	if err != nil {
		return err
	}

	if len(w.listeners) == 0 {
		// With port 0 every listener after the first one must share the
		// port the first one was given.
		w.addr = listener.Addr().String()
	}

	tcpListener := newTCPListener(
		ctx,
		listener,
		w.conf,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)

	w.listeners = append(w.listeners, tcpListener)

	w.stopWaiter.Add(1)
	go func() {
		defer w.stopWaiter.Done()

		if err := tcpListener.Serve(); err != nil {
			// TODO(rolly) as any of the listeners can fail, but we don't treat this as fatal,
			//             you can end up with less than the required amount of listeners running
			w.log.Error("Failed to accept connections", zap.Error(err))
		}
	}()

	return nil
}

func (w *TCP) listen() (net.Listener, error) {
	if w.reuseport {
		return reuseport.Listen("tcp", w.addr)
	}

	return net.Listen("tcp", w.addr)
}

func (w *TCP) broadcastUpdates(ctx context.Context, updates <-chan *storage.Update) {
	for {
		select {
		case <-ctx.Done():
			return

		case update, ok := <-updates:
			if !ok {
				return
			}

			push := (&command.Update{Key: update.Key, Value: update.Value, Deleted: update.Deleted}).Push()

			var err error
			for _, listener := range w.listeners {
				err = multierr.Append(err, listener.WriteUpdate(push))
			}

			if err != nil {
				w.log.Warn("Failed to push update to some connections",
					zap.String("key", update.Key),
					zap.Int("failures", len(multierr.Errors(err))),
					zap.Error(err))
			}
		}
	}
}

func (w *TCP) closeListeners() (err error) {
	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.closeListener())
	}

	return err
}

// Close immediately closes all active listeners and connections.
//
// For a graceful shutdown, use Shutdown()
func (w *TCP) Close() (err error) {
	w.log.Info("Stopping TCP server")
	if w.cancel != nil {
		w.cancel()
	}

	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	w.stopWaiter.Wait()
	w.log.Info("TCP server stopped")

	return err
}

// Shutdown stops accepting connections and waits for the open ones to be
// closed by their clients. If ctx ends first the remaining connections are
// closed immediately and ctx's error is returned.
func (w *TCP) Shutdown(ctx context.Context) error {
	err := w.closeListeners()

	drained := make(chan struct{})
	go func() {
		for _, listener := range w.listeners {
			listener.connWaiter.Wait()
		}
		close(drained)
	}()

	select {
	case <-drained:
		return multierr.Append(err, w.Close())

	case <-ctx.Done():
		return multierr.Combine(err, w.Close(), ctx.Err())
	}
}

type TCPListener struct {
	ctx context.Context

	listener  net.Listener
	closeOnce sync.Once
	closeErr  error

	conf *connConfig
	log  *zap.Logger

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
	connWaiter  sync.WaitGroup
}

func newTCPListener(
	ctx context.Context,
	listener net.Listener,
	conf *connConfig,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		activeConns: make(map[*TCPConn]struct{}),
		conf:        conf,
		log:         log,
	}
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Close stops accepting and closes every active connection.
func (t *TCPListener) Close() error {
	err := t.closeListener()

	t.mu.Lock()
	conns := make([]*TCPConn, 0, len(t.activeConns))
	for conn := range t.activeConns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}

	t.connWaiter.Wait()
	return err
}

func (t *TCPListener) closeListener() error {
	t.closeOnce.Do(func() {
		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = err
		}
	})

	return t.closeErr
}

// Serve accepts connections until the listener is closed.
func (t *TCPListener) Serve() error {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				t.log.Info("Stopped accepting new connections")
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Temporary() {
				t.log.Warn("Temporary accept error", zap.Error(err))
				time.Sleep(acceptBackoff)
				continue
			}

			return err
		}

		tcpConn := newTCPConn(
			t.ctx,
			conn.(*net.TCPConn),
			atomic.AddInt64(&t.conf.lastConnID, 1),
			t.conf,
			t.log.Named("conn"),
		)

		t.addConn(tcpConn)

		t.connWaiter.Add(1)
		go func() {
			defer t.connWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Start()
		}()
	}
}

// WriteUpdate queues push on every active connection without blocking.
func (t *TCPListener) WriteUpdate(push protocol.Push) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conn := range t.activeConns {
		if uerr := conn.TryWrite(push); uerr != nil {
			err = multierr.Append(err, uerr)
		}
	}

	return err
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

// TCPConn serves a single client. Its read loop decodes and runs commands,
// its write loop encodes replies and pushes in the order they were queued.
type TCPConn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	id   int64
	ip   string
	conn *net.TCPConn
	conf *connConfig

	writeQueue chan protocol.Message

	// readDone is closed when the read loop exits, so the write loop can
	// flush the last replies and stop.
	readDone chan struct{}

	log *zap.Logger
}

func newTCPConn(
	parentCtx context.Context,
	conn *net.TCPConn,
	id int64,
	conf *connConfig,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	ip := conn.RemoteAddr().String()
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ip = addr.IP.String()
	}

	t := &TCPConn{
		ctx:        ctx,
		cancel:     cancel,
		id:         id,
		ip:         ip,
		conn:       conn,
		conf:       conf,
		writeQueue: make(chan protocol.Message, writeQueueSize),
		readDone:   make(chan struct{}),
		log:        log.With(zap.Int64("conn", id), zap.String("remote", conn.RemoteAddr().String())),
	}

	// Added here rather than in Start so Close can not Wait before the loops
	// are accounted for.
	t.loopWaiter.Add(2)

	return t
}

// Close stops both loops and closes the connection. Replies still queued
// are dropped.
func (t *TCPConn) Close() error {
	t.cancel()

	// Unblock a read or write in progress
	_ = t.conn.SetDeadline(time.Now())

	t.loopWaiter.Wait()

	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

// Start runs the read and write loops and returns once both have exited
// and the connection is closed.
func (t *TCPConn) Start() {
	go func() {
		defer t.loopWaiter.Done()
		t.ReadLoop()
	}()

	go func() {
		defer t.loopWaiter.Done()
		t.WriteLoop()
	}()

	t.loopWaiter.Wait()
	t.cancel()

	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		t.log.Warn("Failed to close connection cleanly", zap.Error(err))
	}
}

func (t *TCPConn) ReadLoop() {
	log := t.log.Named("readLoop")

	defer func() {
		close(t.readDone)

		// Stop reading, but allow writes to drain
		if err := t.conn.CloseRead(); err != nil && !isClosedConnError(err) {
			log.Warn("Failed to close reads on connection cleanly", zap.Error(err))
		}

		log.Debug("Read loop exited")
	}()

	reader := protocol.NewReader(t.conn, t.conf.decoderOptions...)

	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			t.readFailed(log, err)
			return
		}

		if t.conf.trace {
			log.Debug("Read", zap.Stringer("message", msg))
		}

		if t.conf.limiter != nil && !t.conf.limiter.Allow(t.ip) {
			if err := t.Write(rateLimitedReply); err != nil {
				return
			}
			continue
		}

		req, err := command.ParseRequest(msg)
		if err != nil {
			log.Debug("Invalid command", zap.Error(err))
			if err := t.Write(command.ErrorReply(err)); err != nil {
				return
			}
			continue
		}

		reply, quit := t.conf.handler.handle(t.ctx, t.id, req)
		if err := t.Write(reply); err != nil {
			return
		}

		if quit {
			log.Debug("Client QUIT, exiting...")
			return
		}
	}
}

func (t *TCPConn) readFailed(log *zap.Logger, err error) {
	var protocolErr *protocol.ProtocolError

	switch {
	case errors.As(err, &protocolErr):
		// The stream can not be resynchronised, tell the client why and hang
		// up.
		log.Warn("Client sent malformed data", zap.Error(err))
		_ = t.Write(protocol.SanitizedError(command.CodeErr, protocolErrorPrefix+protocolErr.Err.Error()))

	case errors.Is(err, io.EOF):
		log.Debug("Client disconnected")

	case t.ctx.Err() != nil:
		// Close() interrupted the read

	default:
		log.Warn("Failed to read client request", zap.Error(err))
	}
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")

	defer func() {
		t.cancel()

		if err := t.conn.CloseWrite(); err != nil && !isClosedConnError(err) {
			log.Warn("Failed to close writes on connection cleanly", zap.Error(err))
		}

		// Wake the read loop if it is still waiting on the client.
		_ = t.conn.SetReadDeadline(time.Now())

		log.Debug("Write loop exited")
	}()

	w := protocol.NewWriter(t.conn)
	batch := make([]protocol.Message, 0, maxWriteBatch)

	for {
		select {
		case <-t.ctx.Done():
			return

		// These are replies to client requests handled by the read loop and
		// pushed updates
		case m := <-t.writeQueue:
			batch = t.drainQueue(append(batch[:0], m))
			if err := t.flush(log, w, batch); err != nil {
				return
			}

		case <-t.readDone:
			// The read loop queued its last reply before closing readDone.
			if batch = t.drainQueue(batch[:0]); len(batch) > 0 {
				_ = t.flush(log, w, batch)
			}
			return
		}
	}
}

func (t *TCPConn) flush(log *zap.Logger, w *protocol.Writer, batch []protocol.Message) error {
	if t.conf.trace {
		for _, m := range batch {
			log.Debug("Write", zap.Stringer("message", m))
		}
	}

	if err := w.WriteMessages(batch...); err != nil {
		if t.ctx.Err() == nil {
			log.Warn("Failed to write to client", zap.Int("messages", len(batch)), zap.Error(err))
		}
		return err
	}

	return nil
}

// drainQueue appends whatever is queued without waiting, up to a batch.
func (t *TCPConn) drainQueue(batch []protocol.Message) []protocol.Message {
	for len(batch) < maxWriteBatch {
		select {
		case m := <-t.writeQueue:
			batch = append(batch, m)
		default:
			return batch
		}
	}

	return batch
}

// Write queues m for the write loop, waiting for room in the queue.
func (t *TCPConn) Write(m protocol.Message) error {
	if !t.isRunning() {
		return ErrConnClosed
	}

	select {
	case t.writeQueue <- m:
		return nil
	case <-t.ctx.Done():
		return ErrConnClosed
	}
}

// TryWrite is Write for messages not sent in reply to the client, it fails
// instead of waiting when the client is not keeping up.
func (t *TCPConn) TryWrite(m protocol.Message) error {
	if !t.isRunning() {
		return ErrConnClosed
	}

	select {
	case t.writeQueue <- m:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

// isRunning returns true if Close has not been called
func (t *TCPConn) isRunning() bool {
	select {
	case <-t.ctx.Done():
		// if we can read on this channel then it's been closed
		return false

	default:
		return true
	}
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "transport endpoint is not connected")
}
