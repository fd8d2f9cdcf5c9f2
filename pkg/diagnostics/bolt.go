package diagnostics

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

// Bolt is a Sink that appends JSON-encoded events to a bbolt bucket,
// keyed by "<file_path>/<UTC timestamp as 20060102T150405.000000000Z>"
// (fixed width, so keys sort by time), mirroring the
// lazy-bucket-creation-then-Batch-write pattern used for storing
// uploaded file metadata elsewhere in this codebase.
type Bolt struct {
	DB *bbolt.DB

	err  error
	once sync.Once
}

func (b *Bolt) init() error {
	b.once.Do(b._init)
	return b.err
}

func (b *Bolt) _init() {
	err := b.DB.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		b.err = fmt.Errorf("diagnostics: bucket init: %w", err)
	}
}

type wireEvent struct {
	Timestamp string    `json:"timestamp"`
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	FilePath  string    `json:"file_path"`
	Data      any       `json:"data"`
}

// Record encodes e as JSON and writes it under a key that sorts by file
// then by time, via a single bbolt batched write.
func (b *Bolt) Record(e Event) error {
	if err := b.init(); err != nil {
		return err
	}

	ts := e.Timestamp.UTC().Format("20060102T150405.000000000Z")
	key := []byte(e.FilePath + "/" + ts)

	encoded, err := json.Marshal(wireEvent{
		Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		Type:      e.Type,
		TaskID:    e.TaskID,
		FilePath:  e.FilePath,
		Data:      e.Data,
	})
	if err != nil {
		return fmt.Errorf("diagnostics: marshal event: %w", err)
	}

	return b.DB.Batch(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).Put(key, encoded)
	})
}

// ForFile returns every event recorded for path, in timestamp order, by
// scanning the bucket's key range prefixed with "<path>/".
func (b *Bolt) ForFile(path string) ([]Event, error) {
	if err := b.init(); err != nil {
		return nil, err
	}

	prefix := []byte(path + "/")
	var out []Event
	err := b.DB.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var we wireEvent
			if err := json.Unmarshal(v, &we); err != nil {
				return fmt.Errorf("diagnostics: unmarshal event %s: %w", k, err)
			}
			out = append(out, Event{
				Type:     we.Type,
				TaskID:   we.TaskID,
				FilePath: we.FilePath,
				Data:     we.Data,
			})
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
