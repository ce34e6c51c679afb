package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/namikmesic/chatstream/internal/api"
	"github.com/namikmesic/chatstream/internal/archive"
	"github.com/namikmesic/chatstream/internal/chat"
	"github.com/namikmesic/chatstream/internal/client"
	"github.com/namikmesic/chatstream/internal/jetstream"
	"github.com/namikmesic/chatstream/internal/storage"
	"github.com/namikmesic/chatstream/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local conversation API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	ctx := context.Background()

	cl, err := client.New(cfg.APIBaseURL, cfg.StreamPath)
	if err != nil {
		return fmt.Errorf("chat client: %w", err)
	}

	mem := store.NewMemory()
	opts := controllerOptions(cfg)

	var writer *storage.BatchWriter
	if cfg.ArchiveEnabled() {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := storage.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		writer = storage.NewBatchWriter(pool, cfg.WriterBufferSize, cfg.WriterBatchSize,
			time.Duration(cfg.WriterFlushMs)*time.Millisecond)
		arch := archive.New(writer)
		opts = append(opts, chat.WithTurnRecorder(arch.RecordTurn), chat.WithFrameRecorder(arch.RecordFrames))
	}

	var (
		natsServer *jetstream.Server
		publisher  *jetstream.Publisher
	)
	if cfg.FanoutEnabled() {
		natsServer, err = jetstream.NewServer(cfg.NATSStoreDir)
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		defer natsServer.Shutdown()

		nc, err := natsServer.Connect()
		if err != nil {
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		defer nc.Drain()

		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("get JetStream context: %w", err)
		}
		if err := jetstream.EnsureStream(js); err != nil {
			return fmt.Errorf("create JetStream stream: %w", err)
		}

		publisher = jetstream.NewPublisher(js)
		unsubscribe := mem.Subscribe(publisher.Observe)
		defer unsubscribe()
	}

	turnCtx, cancelTurns := context.WithCancel(ctx)
	defer cancelTurns()

	srv := api.NewServer(turnCtx, mem, func(string) *chat.Controller {
		return chat.New(cl, mem, opts...)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("backend", cfg.APIBaseURL).
			Bool("archive", cfg.ArchiveEnabled()).
			Bool("fanout", cfg.FanoutEnabled()).
			Msg("chatstream api started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-done
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	cancelTurns()
	srv.Wait()

	if publisher != nil {
		select {
		case <-publisher.Flush():
		case <-shutdownCtx.Done():
			log.Warn().Msg("snapshot publishes still pending at shutdown")
		}
	}
	if writer != nil {
		writer.Shutdown()
		stats := writer.Stats()
		log.Info().
			Int64("written", stats.Written).
			Int64("failed", stats.Failed).
			Int64("dropped", stats.Dropped).
			Msg("archive writer stopped")
	}
	log.Info().Msg("shutdown complete")
	return nil
}
