// Package checkpoint persists ingestion progress so that replayed episodes
// can be detected without consulting the graph store.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tempograph/tempograph/pkg/types"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("checkpoint: store closed")

// Record is the durable trace of one completed ingestion.
type Record struct {
	EpisodeUUID string                 `json:"episode_uuid"`
	GroupID     string                 `json:"group_id"`
	IngestedAt  time.Time              `json:"ingested_at"`
	Result      *types.IngestionResult `json:"result,omitempty"`
}

// Store is a badger-backed checkpoint log keyed by (group, episode).
type Store struct {
	db     *badger.DB
	closed bool
}

// Options control how the underlying badger database is opened.
type Options struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps all state in RAM. Useful for tests and ephemeral runs.
	InMemory bool
}

// Open creates or reopens a checkpoint store.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithInMemory(opts.InMemory).
		WithLogger(nil)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	return &Store{db: db}, nil
}

func recordKey(groupID, episodeUUID string) []byte {
	return []byte("episode:" + groupID + ":" + episodeUUID)
}

func groupPrefix(groupID string) []byte {
	return []byte("episode:" + groupID + ":")
}

// Mark records that an episode has been ingested. The result is stored for
// later inspection and may be nil.
func (s *Store) Mark(groupID, episodeUUID string, result *types.IngestionResult) error {
	if s.closed {
		return ErrClosed
	}
	rec := Record{
		EpisodeUUID: episodeUUID,
		GroupID:     groupID,
		IngestedAt:  time.Now().UTC(),
		Result:      result,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("checkpoint: encode record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(groupID, episodeUUID), data)
	})
}

// Seen reports whether an episode has already been checkpointed.
func (s *Store) Seen(groupID, episodeUUID string) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(groupID, episodeUUID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checkpoint: lookup: %w", err)
	}
	return true, nil
}

// Get returns the stored record for an episode, or nil when absent.
func (s *Store) Get(groupID, episodeUUID string) (*Record, error) {
	if s.closed {
		return nil, ErrClosed
	}
	var rec *Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(groupID, episodeUUID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r Record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read record: %w", err)
	}
	return rec, nil
}

// List returns all records for a group, in key order.
func (s *Store) List(groupID string) ([]*Record, error) {
	if s.closed {
		return nil, ErrClosed
	}
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := groupPrefix(groupID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r Record
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				out = append(out, &r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	return out, nil
}

// Forget removes an episode's checkpoint, allowing it to be re-ingested.
func (s *Store) Forget(groupID, episodeUUID string) error {
	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(groupID, episodeUUID))
	})
}

// Close releases the underlying database. Further calls return ErrClosed.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
