package questionbank

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// cacheTTL bounds how long a candidate set stays cached; the admin question
// CRUD invalidates explicitly, this covers out-of-band edits.
const cacheTTL = 5 * time.Minute

// Bank loads question sets from PostgreSQL with a Redis-cached candidate
// pool per (difficulty, categories) filter. When the bank cannot satisfy a
// request — connection failure, empty filter result — it falls back to the
// built-in default set and logs, never failing the session.
type Bank struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewBank creates a question bank loader.
func NewBank(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *Bank {
	return &Bank{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "question_bank").Logger(),
	}
}

// Load returns exactly count questions matching the filter, topping up from
// the default set when the bank comes up short.
func (b *Bank) Load(ctx context.Context, count int, difficulty string, categories []string) ([]model.Question, error) {
	pool, err := b.candidates(ctx, difficulty, categories)
	if err != nil {
		b.log.Warn().Err(err).
			Str("difficulty", difficulty).
			Strs("categories", categories).
			Msg("question bank unavailable, using defaults")
		pool = nil
	}

	picked := sample(pool, count)
	if len(picked) < count {
		need := count - len(picked)
		picked = append(picked, sample(DefaultQuestions(difficulty), need)...)
	}
	if len(picked) > count {
		picked = picked[:count]
	}
	if len(picked) < count {
		// Even the defaults came up short for this difficulty; widen to any.
		picked = append(picked, sample(DefaultQuestions(model.DifficultyAny), count-len(picked))...)
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("no questions available")
	}
	return picked, nil
}

// Invalidate drops every cached candidate set. Called after question CRUD.
func (b *Bank) Invalidate(ctx context.Context) {
	iter := b.rdb.Scan(ctx, 0, "qbank:candidates:*", 0).Iterator()
	for iter.Next(ctx) {
		b.rdb.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		b.log.Warn().Err(err).Msg("cache invalidation scan failed")
	}
}

// candidates returns the full matching question pool, consulting the Redis
// cache before PostgreSQL.
func (b *Bank) candidates(ctx context.Context, difficulty string, categories []string) ([]model.Question, error) {
	key := cacheKey(difficulty, categories)

	if raw, err := b.rdb.Get(ctx, key).Result(); err == nil {
		var cached []model.Question
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		// Corrupt cache entry; fall through to the database.
		b.rdb.Del(ctx, key)
	}

	questions, err := b.queryCandidates(ctx, difficulty, categories)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(questions); err == nil {
		if err := b.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
			b.log.Warn().Err(err).Msg("candidate cache write failed")
		}
	}
	return questions, nil
}

func (b *Bank) queryCandidates(ctx context.Context, difficulty string, categories []string) ([]model.Question, error) {
	query := `SELECT id, category, difficulty, text, choices, correct_index,
	                 time_limit_seconds, points, COALESCE(explanation, ''), created_at
	          FROM questions WHERE 1=1`
	args := []any{}

	if difficulty != "" && difficulty != model.DifficultyAny {
		args = append(args, difficulty)
		query += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}
	if len(categories) > 0 {
		args = append(args, categories)
		query += fmt.Sprintf(" AND category = ANY($%d)", len(args))
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Category, &q.Difficulty, &q.Text, &q.Choices,
			&q.CorrectIndex, &q.TimeLimitSeconds, &q.Points, &q.Explanation, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// sample returns up to n questions drawn without replacement.
func sample(pool []model.Question, n int) []model.Question {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	idx := rand.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]model.Question, 0, n)
	for _, i := range idx[:n] {
		out = append(out, pool[i])
	}
	return out
}

func cacheKey(difficulty string, categories []string) string {
	if difficulty == "" {
		difficulty = model.DifficultyAny
	}
	cats := append([]string(nil), categories...)
	sort.Strings(cats)
	if len(cats) == 0 {
		return "qbank:candidates:" + difficulty + ":all"
	}
	return "qbank:candidates:" + difficulty + ":" + strings.Join(cats, ",")
}
