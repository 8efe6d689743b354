package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendly/internal/config"
	"attendly/internal/ledger"
	"attendly/internal/queue"
	"attendly/internal/store"
)

// The worker drains the replay queue: check-ins accepted while the primary
// store was down are re-applied once it is reachable again, and tombstones
// for records deleted during the outage remove the primary's rows.
// InsertIfAbsent makes the replay idempotent, so duplicates are dropped
// silently; a tombstone for a row already gone is a no-op.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var replay queue.Queue
	if cfg.QueueBackend == "memory" {
		replay = queue.NewInMemory(64)
	} else {
		replay = queue.NewRedisQueue(redisClient.Client, "attendly:replay")
	}

	primary := ledger.NewPostgresStore(db.Client)

	messages, err := replay.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	logger.Info("worker started, waiting for replay messages")
	for msg := range messages {
		switch msg.Kind {
		case queue.KindReplay:
			handleReplay(ctx, logger, replay, primary, msg)
		case queue.KindTombstone:
			handleTombstone(ctx, logger, replay, primary, msg)
		}
	}

	logger.Info("worker stopped")
}

func handleReplay(ctx context.Context, logger *slog.Logger, replay queue.Queue, primary ledger.Store, msg queue.Message) {
	var rec ledger.Record
	if err := json.Unmarshal(msg.Body, &rec); err != nil {
		logger.Error("decode replay record", "error", err)
		return
	}

	switch err := primary.InsertIfAbsent(ctx, rec); {
	case err == nil:
		logger.Info("replayed check-in", "record_id", rec.ID, "date", rec.Date)
	case errors.Is(err, ledger.ErrDuplicateCheckIn):
		logger.Info("replay skipped, record already present", "record_id", rec.ID)
	case errors.Is(err, ledger.ErrStorageUnavailable):
		requeue(ctx, logger, replay, msg, rec.ID)
	default:
		logger.Error("replay failed", "record_id", rec.ID, "error", err)
	}
}

func handleTombstone(ctx context.Context, logger *slog.Logger, replay queue.Queue, primary ledger.Store, msg queue.Message) {
	var ts struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Body, &ts); err != nil {
		logger.Error("decode tombstone", "error", err)
		return
	}

	switch err := primary.Delete(ctx, ts.ID); {
	case err == nil:
		logger.Info("applied tombstone", "record_id", ts.ID)
	case errors.Is(err, ledger.ErrNotFound):
		logger.Info("tombstone skipped, record already gone", "record_id", ts.ID)
	case errors.Is(err, ledger.ErrStorageUnavailable):
		requeue(ctx, logger, replay, msg, ts.ID)
	default:
		logger.Error("tombstone failed", "record_id", ts.ID, "error", err)
	}
}

// requeue puts a message back when the primary is still down and backs off.
func requeue(ctx context.Context, logger *slog.Logger, replay queue.Queue, msg queue.Message, recordID string) {
	if err := replay.Publish(ctx, msg); err != nil {
		logger.Error("requeue message", "kind", msg.Kind, "record_id", recordID, "error", err)
	}
	select {
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}
}
