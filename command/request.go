package command

import (
	"strconv"

	"github.com/luma/resp3d/protocol"
)

type Request interface {
	GetCommand() Command

	// Message returns the request as it is sent over the wire.
	Message() protocol.Array
}

type QuitRequest struct{}

func (q *QuitRequest) GetCommand() Command {
	return QUIT
}

func (q *QuitRequest) Message() protocol.Array {
	return protocol.NewBulkStringArray(string(QUIT))
}

// PingRequest is answered with PONG, or with Text when it is not nil.
type PingRequest struct {
	Text []byte
}

func (q *PingRequest) GetCommand() Command {
	return PING
}

func (q *PingRequest) Message() protocol.Array {
	if q.Text == nil {
		return protocol.NewBulkStringArray(string(PING))
	}

	return protocol.NewArray(bulkString(string(PING)), protocol.NewBulkString(q.Text))
}

type EchoRequest struct {
	Text []byte
}

func (q *EchoRequest) GetCommand() Command {
	return ECHO
}

func (q *EchoRequest) Message() protocol.Array {
	return protocol.NewArray(bulkString(string(ECHO)), protocol.NewBulkString(q.Text))
}

// HelloRequest negotiates the protocol version. A zero Version keeps the
// current one.
type HelloRequest struct {
	Version int
}

func (q *HelloRequest) GetCommand() Command {
	return HELLO
}

func (q *HelloRequest) Message() protocol.Array {
	if q.Version == 0 {
		return protocol.NewBulkStringArray(string(HELLO))
	}

	return protocol.NewBulkStringArray(string(HELLO), strconv.Itoa(q.Version))
}

type SetRequest struct {
	Key   string
	Value []byte
}

func (q *SetRequest) GetCommand() Command {
	return SET
}

func (q *SetRequest) Message() protocol.Array {
	return protocol.NewArray(
		bulkString(string(SET)),
		bulkString(q.Key),
		protocol.NewBulkString(q.Value),
	)
}

type GetRequest struct {
	Key string
}

func (q *GetRequest) GetCommand() Command {
	return GET
}

func (q *GetRequest) Message() protocol.Array {
	return protocol.NewBulkStringArray(string(GET), q.Key)
}

type DelRequest struct {
	Keys []string
}

func (q *DelRequest) GetCommand() Command {
	return DEL
}

func (q *DelRequest) Message() protocol.Array {
	return protocol.NewBulkStringArray(append([]string{string(DEL)}, q.Keys...)...)
}

func bulkString(s string) protocol.BulkString {
	return protocol.NewBulkStringFromString(s)
}

var _ Request = (*QuitRequest)(nil)
var _ Request = (*PingRequest)(nil)
var _ Request = (*EchoRequest)(nil)
var _ Request = (*HelloRequest)(nil)
var _ Request = (*SetRequest)(nil)
var _ Request = (*GetRequest)(nil)
var _ Request = (*DelRequest)(nil)
