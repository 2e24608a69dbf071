package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luma/resp3d/protocol"
)

var (
	ErrNotACommand         = errors.New("commands must be non empty arrays of bulk strings")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrWrongArguments      = errors.New("wrong number of arguments")
	ErrUnsupportedProtocol = errors.New("unsupported protocol version")
)

// ParseRequest interprets a message received from a client as a command.
//
// Command names are case insensitive. The returned error wraps one of the
// Err values above and its text is suitable for an error reply.
func ParseRequest(m protocol.Message) (Request, error) {
	args, err := commandArgs(m)
	if err != nil {
		return nil, err
	}

	raw := string(args[0])
	name := strings.ToUpper(raw)
	args = args[1:]

	switch Command(name) {
	case QUIT:
		if len(args) != 0 {
			return nil, wrongArguments(name)
		}
		return &QuitRequest{}, nil

	case PING:
		switch len(args) {
		case 0:
			return &PingRequest{}, nil
		case 1:
			return &PingRequest{Text: args[0]}, nil
		}
		return nil, wrongArguments(name)

	case ECHO:
		if len(args) != 1 {
			return nil, wrongArguments(name)
		}
		return &EchoRequest{Text: args[0]}, nil

	case HELLO:
		// HELLO may carry AUTH and SETNAME options after the version. Neither
		// is supported so anything past the version is rejected.
		switch len(args) {
		case 0:
			return &HelloRequest{}, nil
		case 1:
			v, err := strconv.Atoi(string(args[0]))
			if err != nil {
				return nil, fmt.Errorf("%w: protocol version is not an integer", ErrWrongArguments)
			}
			if v != ProtocolVersion {
				return nil, fmt.Errorf("%w %d", ErrUnsupportedProtocol, v)
			}
			return &HelloRequest{Version: v}, nil
		}
		return nil, wrongArguments(name)

	case SET:
		if len(args) != 2 {
			return nil, wrongArguments(name)
		}
		return &SetRequest{Key: string(args[0]), Value: args[1]}, nil

	case GET:
		if len(args) != 1 {
			return nil, wrongArguments(name)
		}
		return &GetRequest{Key: string(args[0])}, nil

	case DEL:
		if len(args) == 0 {
			return nil, wrongArguments(name)
		}
		keys := make([]string, len(args))
		for i, arg := range args {
			keys[i] = string(arg)
		}
		return &DelRequest{Keys: keys}, nil
	}

	return nil, fmt.Errorf("%w '%s'", ErrUnknownCommand, raw)
}

// ErrorReply returns the error reply for an error from ParseRequest.
func ErrorReply(err error) protocol.SimpleError {
	code := CodeErr
	if errors.Is(err, ErrUnsupportedProtocol) {
		code = CodeNoProto
	}

	return protocol.SanitizedError(code, err.Error())
}

func commandArgs(m protocol.Message) ([][]byte, error) {
	arr, ok := m.(protocol.Array)
	if !ok || arr.Len() == 0 {
		return nil, fmt.Errorf("%w, got %s", ErrNotACommand, typeName(m))
	}

	args := make([][]byte, arr.Len())
	for i := range args {
		b, ok := arr.At(i).(protocol.BulkString)
		if !ok {
			return nil, fmt.Errorf("%w, argument %d is a %s", ErrNotACommand, i, typeName(arr.At(i)))
		}
		args[i] = b.Bytes()
	}

	return args, nil
}

func wrongArguments(name string) error {
	return fmt.Errorf("%w for '%s' command", ErrWrongArguments, strings.ToLower(name))
}

func typeName(m protocol.Message) string {
	if m == nil {
		return "nil"
	}

	return m.Type().String()
}
