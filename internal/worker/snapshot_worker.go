package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const snapshotQueue = "persist_sessions_queue"

// SnapshotQueue pushes session snapshots onto the Redis persistence queue.
// It is the fire-and-forget side: game flow never waits on PostgreSQL.
type SnapshotQueue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewSnapshotQueue creates a new SnapshotQueue.
func NewSnapshotQueue(rdb *redis.Client, log zerolog.Logger) *SnapshotQueue {
	return &SnapshotQueue{
		rdb: rdb,
		log: log.With().Str("component", "snapshot_queue").Logger(),
	}
}

// SaveSnapshot enqueues a snapshot for durable persistence.
func (q *SnapshotQueue) SaveSnapshot(snap *model.SessionSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		q.log.Error().Err(err).Str("session_id", snap.ID.String()).Msg("Marshal error")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.rdb.RPush(ctx, snapshotQueue, raw).Err(); err != nil {
		q.log.Error().Err(err).Str("session_id", snap.ID.String()).Msg("Enqueue error")
	}
}

// SnapshotWorker consumes persist_sessions_queue and UPSERTs session
// snapshots to PostgreSQL.
type SnapshotWorker struct {
	sessions *repository.SessionRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewSnapshotWorker creates a new SnapshotWorker.
func NewSnapshotWorker(sessions *repository.SessionRepository, rdb *redis.Client, log zerolog.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		sessions: sessions,
		rdb:      rdb,
		log:      log.With().Str("component", "snapshot_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SnapshotWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SnapshotWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, snapshotQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(result[1]), &snap); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.sessions.UpsertSnapshot(ctx, &snap); err != nil {
		w.log.Error().Err(err).
			Str("session_id", snap.ID.String()).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, snapshotQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *SnapshotWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, snapshotQueue).Result()
		if err != nil {
			break
		}

		var snap model.SessionSnapshot
		if err := json.Unmarshal([]byte(result), &snap); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.sessions.UpsertSnapshot(ctx, &snap); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, snapshotQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining snapshots")
	}
}
