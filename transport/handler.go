package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/luma/resp3d/command"
	"github.com/luma/resp3d/internal/meta"
	"github.com/luma/resp3d/protocol"
	"github.com/luma/resp3d/storage"
)

const (
	serverName   = "resp3d"
	storeTimeout = 3 * time.Second
)

var pong = protocol.MustSimpleString("PONG")

// handler runs parsed commands against the store.
type handler struct {
	store storage.Store
	log   *zap.Logger
}

// handle runs req for the connection connID and returns its reply. quit is
// set when the connection should be closed once the reply is written.
func (h *handler) handle(ctx context.Context, connID int64, req command.Request) (reply protocol.Message, quit bool) {
	switch c := req.(type) {
	case *command.QuitRequest:
		return protocol.OK, true

	case *command.PingRequest:
		if c.Text == nil {
			return pong, false
		}
		return protocol.NewBulkString(c.Text), false

	case *command.EchoRequest:
		return protocol.NewBulkString(c.Text), false

	case *command.HelloRequest:
		return helloReply(connID), false

	case *command.SetRequest:
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		if err := h.store.Set(storeCtx, c.Key, c.Value); err != nil {
			h.log.Warn("Failed to set", zap.String("key", c.Key), zap.Error(err))
			return storeError(err), false
		}
		return protocol.OK, false

	case *command.GetRequest:
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		value, ok, err := h.store.Get(storeCtx, c.Key)
		if err != nil {
			h.log.Warn("Failed to get", zap.String("key", c.Key), zap.Error(err))
			return storeError(err), false
		}
		if !ok {
			return protocol.Null{}, false
		}
		return protocol.NewBulkString(value), false

	case *command.DelRequest:
		storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()

		n, err := h.store.Del(storeCtx, c.Keys...)
		if err != nil {
			h.log.Warn("Failed to delete", zap.Strings("keys", c.Keys), zap.Error(err))
			return storeError(err), false
		}
		return protocol.Integer(n), false
	}

	return protocol.SanitizedError(command.CodeErr, "unsupported command "+string(req.GetCommand())), false
}

// helloReply describes the server, in the shape clients expect from HELLO.
func helloReply(connID int64) protocol.Map {
	field := func(name string, value protocol.Message) protocol.Pair {
		return protocol.Pair{Key: protocol.NewBulkStringFromString(name), Value: value}
	}

	return protocol.NewMap(
		field("server", protocol.NewBulkStringFromString(serverName)),
		field("version", protocol.NewBulkStringFromString(meta.VersionOrDev())),
		field("proto", protocol.Integer(command.ProtocolVersion)),
		field("id", protocol.Integer(connID)),
		field("mode", protocol.NewBulkStringFromString("standalone")),
		field("role", protocol.NewBulkStringFromString("master")),
		field("modules", protocol.NewArray()),
	)
}

func storeError(err error) protocol.SimpleError {
	return protocol.SanitizedError(command.CodeErr, err.Error())
}
