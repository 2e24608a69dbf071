package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

const updateBufferSize = 255

// binaryField holds the base64 form of values that are not valid UTF-8 and
// can not be stored as JSON strings.
const binaryField = "base64"

// InmemoryStore keeps every key in a single JSON object. Values that are
// valid UTF-8 are stored as JSON strings, anything else as
// {"base64": "..."}.
type InmemoryStore struct {
	valuesMu sync.RWMutex
	values   []byte

	mu          sync.Mutex
	updateChans []chan *Update

	// dropped counts updates a full listener channel did not take
	dropped uint64

	// stop will be closed when Close() is called
	stop chan struct{}

	log *zap.Logger
}

type Option func(*InmemoryStore)

// WithLogger logs updates dropped for listeners that fall behind.
func WithLogger(log *zap.Logger) Option {
	return func(i *InmemoryStore) {
		i.log = log
	}
}

func NewInmemoryStore(opts ...Option) *InmemoryStore {
	i := &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
		log:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for _, updateChan := range i.updateChans {
		close(updateChan)
	}
	i.updateChans = nil

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var stored interface{} = string(value)
	if !utf8.Valid(value) {
		stored = map[string]string{binaryField: base64.StdEncoding.EncodeToString(value)}
	}

	i.valuesMu.Lock()
	values, err := sjson.SetBytes(i.values, setPath(key), stored)
	if err == nil {
		i.values = values
	}
	i.valuesMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}

	i.publish(&Update{Key: key, Value: cloneBytes(value)})
	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	i.valuesMu.RLock()
	result := gjson.GetBytes(i.values, getPath(key))
	i.valuesMu.RUnlock()

	if !result.Exists() {
		return nil, false, nil
	}

	value, err := decodeValue(result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	return value, true, nil
}

func (i *InmemoryStore) Del(ctx context.Context, keys ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var deleted []string

	i.valuesMu.Lock()
	for _, key := range keys {
		if key == "" || !gjson.GetBytes(i.values, getPath(key)).Exists() {
			continue
		}

		values, err := sjson.DeleteBytes(i.values, setPath(key))
		if err != nil {
			i.valuesMu.Unlock()
			return 0, fmt.Errorf("failed to delete %q: %w", key, err)
		}

		i.values = values
		deleted = append(deleted, key)
	}
	i.valuesMu.Unlock()

	for _, key := range deleted {
		i.publish(&Update{Key: key, Deleted: true})
	}

	return len(deleted), nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, updateBufferSize)
	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)
	return updateChan
}

func (i *InmemoryStore) StopListening(updates <-chan *Update) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for n, updateChan := range i.updateChans {
		if updateChan == updates {
			close(updateChan)
			i.updateChans = append(i.updateChans[:n], i.updateChans[n+1:]...)
			return
		}
	}
}

// Restore replaces the whole store with a document produced by Backup.
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) || !gjson.ParseBytes(values).IsObject() {
		return ErrInvalidBackup
	}

	i.valuesMu.Lock()
	i.values = cloneBytes(values)
	i.valuesMu.Unlock()

	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.valuesMu.RLock()
	defer i.valuesMu.RUnlock()

	return cloneBytes(i.values), nil
}

// DroppedUpdates returns how many updates were not delivered because a
// listener's channel was full.
func (i *InmemoryStore) DroppedUpdates() uint64 {
	return atomic.LoadUint64(&i.dropped)
}

// publish never blocks. A listener that does not keep up misses updates
// rather than stalling writers.
func (i *InmemoryStore) publish(update *Update) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, updateChan := range i.updateChans {
		select {
		case updateChan <- update:
		default:
			atomic.AddUint64(&i.dropped, 1)
			i.log.Warn("Update channel is full, dropping update", zap.String("key", update.Key))
		}
	}
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

func decodeValue(result gjson.Result) ([]byte, error) {
	if result.IsObject() {
		return base64.StdEncoding.DecodeString(result.Get(binaryField).String())
	}

	return []byte(result.String()), nil
}

// getPath escapes key so gjson reads it as a single object key.
func getPath(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		if !isPlainPathByte(key[i]) {
			b.WriteByte('\\')
		}
		b.WriteByte(key[i])
	}

	return b.String()
}

// setPath is getPath for sjson. The leading colon stops sjson from treating
// numeric keys as array indexes.
func setPath(key string) string {
	return ":" + getPath(key)
}

func isPlainPathByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' || c >= utf8.RuneSelf
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)
	return c
}

var _ Store = (*InmemoryStore)(nil)
