package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/resp3d/command"
	"github.com/luma/resp3d/protocol"
)

const updateBufferSize = 255

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("connection closed")
)

type result struct {
	reply protocol.Message
	err   error
}

// Conn is a client connection to a resp3d server.
//
// Commands may be sent from several goroutines at once. Replies are matched
// to commands in the order the commands were written, which is the order the
// server answers them in. Updates the server pushes are delivered on
// UpdateChan.
type Conn struct {
	conn   net.Conn
	reader *protocol.Reader

	writeMu sync.Mutex
	writer  *protocol.Writer

	mu      sync.Mutex
	pending []chan result
	err     error

	updateChan chan *command.Update
	readDone   chan struct{}

	decoderOptions []protocol.DecoderOption

	log *zap.Logger
}

func New(log *zap.Logger, opts ...protocol.DecoderOption) *Conn {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		log:            log,
		updateChan:     make(chan *command.Update, updateBufferSize),
		readDone:       make(chan struct{}),
		decoderOptions: opts,
		err:            ErrNotConnected,
	}
}

// Connect dials addr and starts reading replies. ctx only bounds the dial.
func (c *Conn) Connect(ctx context.Context, addr string) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = protocol.NewReader(conn, c.decoderOptions...)
	c.writer = protocol.NewWriter(conn)

	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()

	go c.readLoop()

	return nil
}

// Disconnect closes the connection. Commands waiting for a reply fail with
// ErrClosed.
func (c *Conn) Disconnect() error {
	if c.conn == nil {
		return ErrNotConnected
	}

	err := c.conn.Close()
	<-c.readDone

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

// UpdateChan receives the store updates pushed by the server. It is closed
// once the connection is.
func (c *Conn) UpdateChan() <-chan *command.Update {
	return c.updateChan
}

// Do sends req and waits for its reply. Error replies are returned as
// messages, not as errors.
func (c *Conn) Do(ctx context.Context, req command.Request) (protocol.Message, error) {
	respChan := make(chan result, 1)

	c.writeMu.Lock()

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		c.writeMu.Unlock()
		return nil, err
	}
	c.pending = append(c.pending, respChan)
	c.mu.Unlock()

	err := c.writer.WriteMessage(req.Message())
	c.writeMu.Unlock()

	if err != nil {
		// The reply for every later command would be off by one, so the
		// connection is unusable.
		c.conn.Close()
		return nil, err
	}

	select {
	case resp := <-respChan:
		return resp.reply, resp.err

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Quit(ctx context.Context) error {
	reply, err := c.Do(ctx, &command.QuitRequest{})
	if err != nil {
		return err
	}

	return command.OkReply(reply)
}

func (c *Conn) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, &command.PingRequest{})
	if err != nil {
		return err
	}

	if err := command.ErrorOrNil(reply); err != nil {
		return err
	}

	return nil
}

func (c *Conn) Echo(ctx context.Context, text []byte) ([]byte, error) {
	reply, err := c.Do(ctx, &command.EchoRequest{Text: text})
	if err != nil {
		return nil, err
	}

	return command.BytesOrNil(reply)
}

// Hello negotiates RESP3 and returns the server's description of itself.
func (c *Conn) Hello(ctx context.Context) (protocol.Map, error) {
	reply, err := c.Do(ctx, &command.HelloRequest{Version: command.ProtocolVersion})
	if err != nil {
		return protocol.Map{}, err
	}

	if err := command.ErrorOrNil(reply); err != nil {
		return protocol.Map{}, err
	}

	info, ok := reply.(protocol.Map)
	if !ok {
		return protocol.Map{}, fmt.Errorf("%w %s", command.ErrUnexpectedReply, reply)
	}

	return info, nil
}

func (c *Conn) Set(ctx context.Context, key string, value []byte) error {
	reply, err := c.Do(ctx, &command.SetRequest{Key: key, Value: value})
	if err != nil {
		return err
	}

	return command.OkReply(reply)
}

// Get returns the value of key and whether it exists.
func (c *Conn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reply, err := c.Do(ctx, &command.GetRequest{Key: key})
	if err != nil {
		return nil, false, err
	}

	value, err := command.BytesOrNil(reply)
	if err != nil {
		return nil, false, err
	}

	if _, isNull := reply.(protocol.Null); isNull {
		return nil, false, nil
	}

	return value, true, nil
}

// Del deletes keys and returns how many of them existed.
func (c *Conn) Del(ctx context.Context, keys ...string) (int64, error) {
	reply, err := c.Do(ctx, &command.DelRequest{Keys: keys})
	if err != nil {
		return 0, err
	}

	return command.IntegerReply(reply)
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	defer close(c.readDone)
	defer close(c.updateChan)

	for {
		m, err := c.reader.ReadMessage()
		if err != nil {
			log.Debug("Read loop exiting", zap.Error(err))
			c.fail(err)
			return
		}

		if push, ok := m.(protocol.Push); ok {
			c.handlePush(log, push)
			continue
		}

		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			log.Warn("Received a reply nobody is waiting for", zap.Stringer("reply", m))
			continue
		}

		respChan := c.pending[0]
		c.pending[0] = nil
		c.pending = c.pending[1:]
		c.mu.Unlock()

		respChan <- result{reply: m}
	}
}

func (c *Conn) handlePush(log *zap.Logger, push protocol.Push) {
	update, err := command.ParseUpdate(push)
	if err != nil {
		log.Debug("Ignoring push", zap.Stringer("push", push), zap.Error(err))
		return
	}

	select {
	case c.updateChan <- update:
	default:
		log.Warn("Update channel is full, dropping update", zap.String("key", update.Key))
	}
}

// fail ends every pending command with err.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.err = fmt.Errorf("%w: %v", ErrClosed, err)

	for _, respChan := range c.pending {
		respChan <- result{err: c.err}
	}
	c.pending = nil
}
