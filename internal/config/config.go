// Package config loads the small set of ambient settings the CleanupEngine's
// collaborators need at process start — connection strings, backend
// choices — the way cmd/goflow-migrate and internal/cli loaded DB
// settings in the teacher: cobra flags overridable by environment,
// with an optional .env file loaded via joho/godotenv. The engine
// itself stays tunable-free, per spec.md §6; everything here configures
// collaborators, not decision logic.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// DeleterBackend selects a PathDeleter implementation.
type DeleterBackend string

const (
	DeleterLocal DeleterBackend = "local"
	DeleterS3    DeleterBackend = "s3"
)

// CacheBackend selects a CacheSink implementation.
type CacheBackend string

const (
	CachePostgres CacheBackend = "postgres"
	CacheLevelDB  CacheBackend = "leveldb"
)

// Config is the ambient configuration surface for cmd/eagerclean.
type Config struct {
	DeleterBackend DeleterBackend
	CacheBackend   CacheBackend

	S3Bucket string
	S3Region string

	LevelDBPath string

	PostgresDSN string

	NATSURL string

	HTTPAddr string

	IdleSweepSeconds int
}

// BindFlags registers the config's flags on cmd, with defaults read from
// the environment (and .env, if present) so either flags or env vars work,
// matching cmd/goflow-migrate's --db-flag-or-env-vars pattern.
func BindFlags(cmd *cobra.Command) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "config: no .env file found or failed to load: %v\n", err)
	}

	flags := cmd.Flags()
	flags.String("deleter", envOr("EAGERCLEAN_DELETER", string(DeleterLocal)), "path deleter backend: local or s3")
	flags.String("cache", envOr("EAGERCLEAN_CACHE", string(CachePostgres)), "cache sink backend: postgres or leveldb")
	flags.String("s3-bucket", envOr("EAGERCLEAN_S3_BUCKET", ""), "S3 bucket for the s3 deleter backend")
	flags.String("s3-region", envOr("EAGERCLEAN_S3_REGION", ""), "AWS region for the s3 deleter backend")
	flags.String("leveldb-path", envOr("EAGERCLEAN_LEVELDB_PATH", "./eagerclean-cache.db"), "LevelDB data directory for the leveldb cache backend")
	flags.String("db", envOr("DATABASE_URL", ""), "Postgres connection string for the postgres cache backend")
	flags.String("nats-url", envOr("EAGERCLEAN_NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL for the event bus")
	flags.String("http-addr", envOr("EAGERCLEAN_HTTP_ADDR", ":8090"), "listen address for the read-only status API")
	flags.Int("idle-sweep-seconds", 0, "re-run the cleanup sweep on this interval in addition to the per-event sweep; 0 disables it")
}

// FromFlags reads the Config back out of cmd's flags, after BindFlags and
// cmd.Execute have run.
func FromFlags(cmd *cobra.Command) (Config, error) {
	var cfg Config
	var err error

	deleter, _ := cmd.Flags().GetString("deleter")
	cfg.DeleterBackend = DeleterBackend(deleter)

	cache, _ := cmd.Flags().GetString("cache")
	cfg.CacheBackend = CacheBackend(cache)

	cfg.S3Bucket, _ = cmd.Flags().GetString("s3-bucket")
	cfg.S3Region, _ = cmd.Flags().GetString("s3-region")
	cfg.LevelDBPath, _ = cmd.Flags().GetString("leveldb-path")
	cfg.PostgresDSN, _ = cmd.Flags().GetString("db")
	cfg.NATSURL, _ = cmd.Flags().GetString("nats-url")
	cfg.HTTPAddr, _ = cmd.Flags().GetString("http-addr")
	cfg.IdleSweepSeconds, _ = cmd.Flags().GetInt("idle-sweep-seconds")

	if cfg.DeleterBackend == DeleterS3 && cfg.S3Bucket == "" {
		err = fmt.Errorf("config: --s3-bucket is required when --deleter=s3")
	}
	if cfg.CacheBackend == CachePostgres && cfg.PostgresDSN == "" {
		err = fmt.Errorf("config: --db is required when --cache=postgres")
	}
	return cfg, err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
