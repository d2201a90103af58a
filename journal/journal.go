// Package journal keeps an in-memory JSON document of bridge activity:
// connection counts, lines relayed, the last error per connection. It is
// operational bookkeeping for the serve command's status endpoint, nothing
// protocol-level depends on it.
package journal

import (
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Entry is one recorded change, delivered to every Watch channel.
type Entry struct {
	// Path is the gjson-style dotted path that changed
	Path string

	// Value is the raw JSON now stored at Path
	Value []byte
}

// Journal is a single JSON document written through sjson and read through
// gjson. All methods are safe for concurrent use.
type Journal struct {
	mu         sync.Mutex
	doc        []byte
	watchChans []chan *Entry

	// stop will be closed when Close() is called
	stop chan struct{}
}

func New() *Journal {
	return &Journal{
		doc:        []byte(""),
		stop:       make(chan struct{}),
		watchChans: make([]chan *Entry, 0),
	}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.isRunning() {
		return nil
	}

	close(j.stop)

	for _, watchChan := range j.watchChans {
		close(watchChan)
	}

	return nil
}

// Record sets the value at a dotted path and notifies every watcher.
// Recording after Close is a silent no-op.
func (j *Journal) Record(path string, value interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.record(path, value)
}

// Incr adds delta to the integer at a dotted path, treating an absent
// value as zero.
func (j *Journal) Incr(path string, delta int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	current := gjson.GetBytes(j.doc, path).Int()

	return j.record(path, current+delta)
}

// record is Record with mu already held.
func (j *Journal) record(path string, value interface{}) error {
	if !j.isRunning() {
		return nil
	}

	doc, err := sjson.SetBytes(j.doc, path, value)
	if err != nil {
		return err
	}

	j.doc = doc

	entry := &Entry{
		Path:  path,
		Value: []byte(gjson.GetBytes(j.doc, path).Raw),
	}

	for _, watchChan := range j.watchChans {
		// Never block a recorder on a watcher: a full buffer drops the
		// entry, the watcher can Snapshot to resynchronise
		select {
		case watchChan <- entry:
		default:
		}
	}

	return nil
}

// Query returns the raw JSON at a dotted path, "" when nothing is there.
func (j *Journal) Query(path string) []byte {
	j.mu.Lock()
	defer j.mu.Unlock()

	return []byte(gjson.GetBytes(j.doc, path).Raw)
}

// Watch returns a channel that receives an Entry for every Record until
// the journal is closed. The channel is buffered; entries recorded while
// the buffer is full are dropped rather than stalling the recorder, a
// watcher that fell behind can Snapshot to resynchronise.
func (j *Journal) Watch() <-chan *Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	watchChan := make(chan *Entry, 255)
	j.watchChans = append(j.watchChans, watchChan)

	return watchChan
}

// Snapshot returns the whole document. An empty journal snapshots as {}.
func (j *Journal) Snapshot() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.doc) == 0 {
		return []byte("{}")
	}

	doc := make([]byte, len(j.doc))
	copy(doc, j.doc)

	return doc
}

// Restore replaces the whole document, for tests and for rehydrating a
// journal across serve restarts.
func (j *Journal) Restore(doc []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.doc = append([]byte(nil), doc...)

	return nil
}

// isRunning returns true if Close has not been called. Callers hold mu.
func (j *Journal) isRunning() bool {
	select {
	case <-j.stop:
		return false

	default:
		return true
	}
}
