package command

import (
	"errors"
	"fmt"

	"github.com/luma/resp3d/protocol"
)

var ErrUnexpectedReply = errors.New("unexpected reply")

// ErrorOrNil returns the reply as an error if it is a SimpleError or
// BlobError. Otherwise it returns nil.
func ErrorOrNil(reply protocol.Message) error {
	switch e := reply.(type) {
	case protocol.SimpleError:
		return e
	case protocol.BlobError:
		return e
	}

	return nil
}

// BytesOrNil returns the payload of a string reply, or nil for a Null reply.
func BytesOrNil(reply protocol.Message) ([]byte, error) {
	if err := ErrorOrNil(reply); err != nil {
		return nil, err
	}

	switch r := reply.(type) {
	case protocol.BulkString:
		return r.Bytes(), nil
	case protocol.VerbatimString:
		return r.Bytes(), nil
	case protocol.SimpleString:
		return []byte(r.Value()), nil
	case protocol.Null:
		return nil, nil
	}

	return nil, unexpected(reply)
}

// IntegerReply returns the value of an Integer reply.
func IntegerReply(reply protocol.Message) (int64, error) {
	if err := ErrorOrNil(reply); err != nil {
		return 0, err
	}

	n, ok := reply.(protocol.Integer)
	if !ok {
		return 0, unexpected(reply)
	}

	return int64(n), nil
}

// OkReply checks that reply is +OK.
func OkReply(reply protocol.Message) error {
	if err := ErrorOrNil(reply); err != nil {
		return err
	}

	if !protocol.Equal(reply, protocol.OK) {
		return unexpected(reply)
	}

	return nil
}

func unexpected(reply protocol.Message) error {
	return fmt.Errorf("%w %s", ErrUnexpectedReply, reply)
}
