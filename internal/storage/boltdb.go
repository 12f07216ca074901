package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/clipdrive/internal/types"
	"github.com/berrythewa/clipdrive/pkg/utils"
)

const (
	journalBucket = "journal"
	defaultKeep   = 500
)

// JournalConfig holds configuration for BoltJournal initialization
type JournalConfig struct {
	DBPath string
	// Keep bounds the number of entries retained; older ones are pruned.
	Keep   int
	Logger *zap.Logger
	// Timeout for acquiring the database file lock.
	Timeout time.Duration
}

// BoltJournal records engine outcomes in a local bbolt database.
type BoltJournal struct {
	db     *bbolt.DB
	keep   int
	logger *zap.Logger
}

// NewBoltJournal opens or creates the journal database.
func NewBoltJournal(cfg JournalConfig) (*BoltJournal, error) {
	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := bbolt.Open(cfg.DBPath, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(journalBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	logger.Debug("Journal opened",
		zap.String("db_path", cfg.DBPath),
		zap.Int("keep", keep))

	return &BoltJournal{db: db, keep: keep, logger: logger}, nil
}

// Record appends entry, assigning an ID and time when missing, and prunes
// the oldest entries beyond the retention bound.
func (j *BoltJournal) Record(entry types.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = utils.NewID()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(journalBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(key(seq), data); err != nil {
			return fmt.Errorf("failed to store journal entry: %w", err)
		}
		return j.prune(b)
	})
}

// prune deletes everything older than the newest keep entries. Keys are
// counted with the cursor; Bucket.Stats misses uncommitted puts.
func (j *BoltJournal) prune(b *bbolt.Bucket) error {
	c := b.Cursor()
	var (
		kept   int
		doomed [][]byte
	)
	for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
		if kept < j.keep {
			kept++
			continue
		}
		doomed = append(doomed, append([]byte(nil), k...))
	}
	for _, k := range doomed {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	if len(doomed) > 0 {
		j.logger.Debug("Pruned journal", zap.Int("removed", len(doomed)))
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (j *BoltJournal) Recent(limit int) ([]types.JournalEntry, error) {
	var entries []types.JournalEntry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(journalBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e types.JournalEntry
			if err := json.Unmarshal(v, &e); err != nil {
				j.logger.Warn("Skipping undecodable journal entry", zap.Error(err))
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (j *BoltJournal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(journalBucket)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the database.
func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func key(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
