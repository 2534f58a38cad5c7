// Package leveldb implements cleanup.CacheSink as an embedded,
// dependency-free-of-a-server alternative to the Postgres sink, for
// single-node or dev runs — grounded on fawad-mazhar/naxos's
// internal/storage/leveldb/client.go (same goleveldb open/put/get shape,
// swapped from a TTL cache to an append-only finalize log).
package leveldb

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/flowforge/eagerclean/internal/log"
)

// Record is one finalize entry as stored, keyed by task_hash + sequence
// so ConsumersOf can return the full history for a task.
type Record struct {
	TaskHash       string    `json:"taskHash"`
	ConsumerHashes []string  `json:"consumerHashes"`
	FinalizedAt    time.Time `json:"finalizedAt"`
}

// Sink is a goleveldb-backed CacheSink.
type Sink struct {
	db    *leveldb.DB
	mu    sync.Mutex
	seq   uint64
}

// New opens (creating if absent) a LevelDB database at path.
func New(path string) (*Sink, error) {
	opts := &opt.Options{
		CompactionTableSize: 2 * 1024 * 1024,
		WriteBuffer:         1 * 1024 * 1024,
	}
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, fmt.Errorf("cachesink/leveldb: open %q: %w", path, err)
	}
	s := &Sink{db: db}
	// Continue the key sequence after the highest one already stored, so
	// records written by an earlier session are not overwritten.
	iter := db.NewIterator(util.BytesPrefix([]byte("finalize/")), nil)
	for iter.Next() {
		if k := iter.Key(); len(k) >= 20 {
			var n uint64
			if _, err := fmt.Sscanf(string(k[len(k)-20:]), "%d", &n); err == nil && n > s.seq {
				s.seq = n
			}
		}
	}
	iter.Release()
	return s, nil
}

// FinalizeAsync implements cleanup.CacheSink. goleveldb's Put is a local
// disk write, fast enough that the "async" contract is satisfied by doing
// the write on a detached goroutine rather than a worker pool.
func (s *Sink) FinalizeAsync(taskHash string, consumerHashes []string) {
	go func() {
		if err := s.put(taskHash, consumerHashes); err != nil {
			log.GetLogger().Errorf("cachesink/leveldb: finalize task %q: %v", taskHash, err)
		}
	}()
}

func (s *Sink) put(taskHash string, consumerHashes []string) error {
	rec := Record{TaskHash: taskHash, ConsumerHashes: consumerHashes, FinalizedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.seq++
	key := fmt.Sprintf("finalize/%s/%020d", taskHash, s.seq)
	s.mu.Unlock()

	return s.db.Put([]byte(key), data, nil)
}

// ConsumersOf returns every consumer-hash list finalized for taskHash,
// oldest first.
func (s *Sink) ConsumersOf(taskHash string) ([][]string, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte("finalize/"+taskHash+"/")), nil)
	defer iter.Release()

	var out [][]string
	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("cachesink/leveldb: decode record for %q: %w", taskHash, err)
		}
		out = append(out, rec.ConsumerHashes)
	}
	return out, iter.Error()
}

// Close releases the database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}
