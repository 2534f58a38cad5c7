// cmd/eagerclean/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowforge/eagerclean/internal/cachesink/leveldb"
	"github.com/flowforge/eagerclean/internal/cachesink/postgres"
	"github.com/flowforge/eagerclean/internal/config"
	"github.com/flowforge/eagerclean/internal/deleter/local"
	"github.com/flowforge/eagerclean/internal/deleter/s3"
	"github.com/flowforge/eagerclean/internal/eventbus"
	"github.com/flowforge/eagerclean/internal/httpstatus"
	"github.com/flowforge/eagerclean/internal/log"
	"github.com/flowforge/eagerclean/internal/simulator"
	"github.com/flowforge/eagerclean/pkg/cleanup"
)

var rootCmd = &cobra.Command{Use: "eagerclean"}

func main() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the eager cleanup engine against a live NATS event bus and status API",
		RunE:  runServe,
	}
	config.BindFlags(serveCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a demo pipeline through the cleanup engine in-process and print the final report",
		RunE:  runSimulate,
	}
	config.BindFlags(simulateCmd)

	rootCmd.AddCommand(serveCmd, simulateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFlags(cmd)
	if err != nil {
		return err
	}

	pathDeleter, err := buildDeleter(cfg)
	if err != nil {
		return err
	}
	cacheSink, closeSink, err := buildCacheSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	engine := cleanup.NewCleanupEngine(pathDeleter, cacheSink, log.GetLogger())
	stopIdleSweep := engine.StartIdleSweepLoop(cmd.Context(), time.Duration(cfg.IdleSweepSeconds)*time.Second)
	defer stopIdleSweep()

	bus, err := eventbus.Connect(cfg.NATSURL, engine)
	if err != nil {
		return err
	}
	if err := bus.Start(); err != nil {
		return err
	}
	defer bus.Close()

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: httpstatus.NewRouter(engine)}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.GetLogger().Errorf("eagerclean: status API exited: %v", err)
		}
	}()
	log.GetLogger().Infof("eagerclean: listening for workflow events on %s, status API on %s", cfg.NATSURL, cfg.HTTPAddr)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromFlags(cmd)
	if err != nil {
		return err
	}

	pathDeleter, err := buildDeleter(cfg)
	if err != nil {
		return err
	}
	cacheSink, closeSink, err := buildCacheSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	engine := cleanup.NewCleanupEngine(pathDeleter, cacheSink, log.GetLogger())

	exec := simulator.New(4, time.Now().UnixNano())
	spec := simulator.PipelineSpec{Processes: []simulator.ProcessSpec{
		{Name: "align", TaskCount: 6},
		{Name: "variantCall", Upstream: []string{"align"}, TaskCount: 6, Publish: true},
		{Name: "annotate", Upstream: []string{"variantCall"}, TaskCount: 3, Publish: true, FailEvery: 5},
		{Name: "report", Upstream: []string{"annotate"}, TaskCount: 1, Publish: true},
	}}

	if _, err := exec.Run(engine, spec); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(engine.Report())
}

func buildDeleter(cfg config.Config) (cleanup.PathDeleter, error) {
	switch cfg.DeleterBackend {
	case config.DeleterS3:
		return s3.New(context.Background(), s3.Options{Bucket: cfg.S3Bucket, Region: cfg.S3Region})
	default:
		return local.New(), nil
	}
}

func buildCacheSink(cfg config.Config) (cleanup.CacheSink, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheLevelDB:
		sink, err := leveldb.New(cfg.LevelDBPath)
		if err != nil {
			return nil, func() {}, err
		}
		return sink, func() { _ = sink.Close() }, nil
	default:
		sink, err := postgres.New(cfg.PostgresDSN, postgres.Config{})
		if err != nil {
			return nil, func() {}, err
		}
		return sink, func() { _ = sink.Close() }, nil
	}
}
