// Package postgres implements cleanup.CacheSink against Postgres, directly
// adapted from the teacher's internal/storage/postgres.go: the same
// sqlx.DB-behind-an-interface shape, swapped from workflow/task CRUD to a
// single finalize_records table.
package postgres

import (
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/flowforge/eagerclean/internal/log"
)

// dbInterface is the slice of *sqlx.DB this package needs, mirroring the
// teacher's DBInterface seam so tests can swap in a fake.
type dbInterface interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Select(dest interface{}, query string, args ...interface{}) error
}

// Sink persists CleanupEngine finalize records — which tasks consumed a
// given task's outputs — for the resume/cache layer. FinalizeAsync never
// blocks the engine on the write: it hands the record to a bounded
// worker pool of its own so a slow or down database degrades finalize
// latency, not cleanup latency.
type Sink struct {
	db      dbInterface
	jobs    chan finalizeJob
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

type finalizeJob struct {
	taskHash       string
	consumerHashes []string
}

// Config controls the async writer pool.
type Config struct {
	Workers int // default 4
	Queue   int // default 256
}

// New opens a Postgres connection pool and starts the async finalize
// workers. The caller owns schema migration (see cmd/eagerclean-migrate).
func New(connStr string, cfg Config) (*Sink, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "cachesink/postgres: open")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "cachesink/postgres: ping")
	}
	return newWithDB(db, cfg), nil
}

func newWithDB(db dbInterface, cfg Config) *Sink {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 256
	}
	s := &Sink{db: db, jobs: make(chan finalizeJob, cfg.Queue)}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// FinalizeAsync implements cleanup.CacheSink. It never blocks on I/O: the
// record is queued and a full queue drops the record with a logged error
// rather than stalling the engine's mutex-holding caller.
func (s *Sink) FinalizeAsync(taskHash string, consumerHashes []string) {
	select {
	case s.jobs <- finalizeJob{taskHash: taskHash, consumerHashes: consumerHashes}:
	default:
		log.GetLogger().Errorf("cachesink/postgres: finalize queue full, dropping record for task %q", taskHash)
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		_, err := s.db.Exec(
			`INSERT INTO finalize_records (task_hash, consumer_hashes, finalized_at) VALUES ($1, $2, $3)`,
			job.taskHash, pq.Array(job.consumerHashes), time.Now().UTC(),
		)
		if err != nil {
			log.GetLogger().Errorf("cachesink/postgres: insert finalize record for task %q: %v", job.taskHash, err)
		}
	}
}

// ConsumersOf returns every consumer-hash list ever finalized for
// taskHash, most recent first — the sink's read path, per SPEC_FULL.md
// §9.4 (no storage layer in the corpus is write-only). No route of
// internal/httpstatus calls it.
func (s *Sink) ConsumersOf(taskHash string) ([][]string, error) {
	var rows []struct {
		ConsumerHashes pq.StringArray `db:"consumer_hashes"`
	}
	err := s.db.Select(&rows,
		`SELECT consumer_hashes FROM finalize_records WHERE task_hash = $1 ORDER BY finalized_at DESC`,
		taskHash)
	if err != nil {
		return nil, errors.Wrapf(err, "cachesink/postgres: consumers of %q", taskHash)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string(r.ConsumerHashes)
	}
	return out, nil
}

// Close stops accepting new jobs and waits for queued writes to drain.
func (s *Sink) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.wg.Wait()
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil
}
