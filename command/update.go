package command

import (
	"errors"
	"fmt"

	"github.com/luma/resp3d/protocol"
)

// Kinds of store update pushed to clients.
const (
	UpdateSet = "set"
	UpdateDel = "del"
)

var ErrNotAnUpdate = errors.New("push is not a store update")

// Update is a change to the store, pushed to every connected client as
// >3 set key value or >2 del key.
type Update struct {
	Key     string
	Value   []byte
	Deleted bool
}

// Push returns the update as it is sent to clients.
func (u *Update) Push() protocol.Push {
	if u.Deleted {
		return protocol.NewPush(bulkString(UpdateDel), bulkString(u.Key))
	}

	return protocol.NewPush(bulkString(UpdateSet), bulkString(u.Key), protocol.NewBulkString(u.Value))
}

// ParseUpdate interprets a Push received from the server.
func ParseUpdate(p protocol.Push) (*Update, error) {
	args := make([]string, p.Len())
	for i := range args {
		b, ok := p.At(i).(protocol.BulkString)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotAnUpdate, p)
		}
		args[i] = b.Text()
	}

	switch {
	case len(args) == 3 && args[0] == UpdateSet:
		return &Update{Key: args[1], Value: []byte(args[2])}, nil
	case len(args) == 2 && args[0] == UpdateDel:
		return &Update{Key: args[1], Deleted: true}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotAnUpdate, p)
}
