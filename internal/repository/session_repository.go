package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// SessionSummary is one row of the session history listing.
type SessionSummary struct {
	ID            uuid.UUID           `json:"id"`
	JoinCode      string              `json:"join_code"`
	Status        model.SessionStatus `json:"status"`
	PlayerCount   int                 `json:"player_count"`
	QuestionCount int                 `json:"question_count"`
	CreatedAt     time.Time           `json:"created_at"`
	EndedAt       *time.Time          `json:"ended_at,omitempty"`
}

// LeaderboardEntry is one row of a session's final leaderboard.
type LeaderboardEntry struct {
	Position int       `json:"position"`
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
}

// SessionRepository persists session snapshots. All writes are idempotent
// upserts: the snapshot worker may deliver the same or a newer snapshot of a
// session any number of times.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// UpsertSnapshot writes one full session snapshot in a transaction.
func (r *SessionRepository) UpsertSnapshot(ctx context.Context, snap *model.SessionSnapshot) error {
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, join_code, host_id, status, current_question,
		                       question_count, settings, created_at, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE
		 SET status = EXCLUDED.status,
		     current_question = EXCLUDED.current_question,
		     started_at = EXCLUDED.started_at,
		     ended_at = EXCLUDED.ended_at,
		     updated_at = NOW()`,
		snap.ID, snap.JoinCode, snap.HostID, snap.Status, snap.CurrentQuestion,
		snap.QuestionCount, settings, snap.CreatedAt, snap.StartedAt, snap.EndedAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, p := range snap.Players {
		_, err = tx.Exec(ctx,
			`INSERT INTO session_players (id, session_id, name, score, joined_at, last_active_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE
			 SET score = EXCLUDED.score,
			     last_active_at = EXCLUDED.last_active_at`,
			p.ID, snap.ID, p.Name, p.Score, p.JoinedAt, p.LastActiveAt)
		if err != nil {
			return fmt.Errorf("upsert player: %w", err)
		}

		for _, a := range p.Answers {
			_, err = tx.Exec(ctx,
				`INSERT INTO session_answers (session_id, player_id, question_index,
				                              choice_index, correct, time_to_answer_ms, points)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (session_id, player_id, question_index) DO NOTHING`,
				snap.ID, p.ID, a.QuestionIndex, a.ChoiceIndex, a.Correct, a.TimeToAnswerMs, a.Points)
			if err != nil {
				return fmt.Errorf("upsert answer: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// ListByHost retrieves a host's session history, newest first.
func (r *SessionRepository) ListByHost(ctx context.Context, hostID, page, perPage int) ([]SessionSummary, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE host_id = $1`, hostID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.join_code, s.status, s.question_count, s.created_at, s.ended_at,
		        (SELECT COUNT(*) FROM session_players p WHERE p.session_id = s.id)
		 FROM sessions s
		 WHERE s.host_id = $1
		 ORDER BY s.created_at DESC
		 LIMIT $2 OFFSET $3`,
		hostID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.JoinCode, &s.Status, &s.QuestionCount,
			&s.CreatedAt, &s.EndedAt, &s.PlayerCount); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Leaderboard retrieves the final scores for a session, descending.
func (r *SessionRepository) Leaderboard(ctx context.Context, sessionID uuid.UUID) ([]LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, score
		 FROM session_players
		 WHERE session_id = $1
		 ORDER BY score DESC, joined_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Name, &e.Score); err != nil {
			return nil, err
		}
		e.Position = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
