package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// QuestionRepository handles bank question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// List retrieves questions with optional category/difficulty filters and
// pagination.
func (r *QuestionRepository) List(ctx context.Context, page, perPage int, category, difficulty string) ([]model.Question, int64, error) {
	baseQuery := ` FROM questions WHERE 1=1`
	args := []any{}

	if category != "" {
		args = append(args, category)
		baseQuery += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if difficulty != "" {
		args = append(args, difficulty)
		baseQuery += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, category, difficulty, text, choices, correct_index,
	                 time_limit_seconds, points, COALESCE(explanation, ''), created_at` +
		baseQuery +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Category, &q.Difficulty, &q.Text, &q.Choices,
			&q.CorrectIndex, &q.TimeLimitSeconds, &q.Points, &q.Explanation, &q.CreatedAt); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (category, difficulty, text, choices, correct_index,
		                        time_limit_seconds, points, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		 RETURNING id, created_at`,
		q.Category, q.Difficulty, q.Text, q.Choices, q.CorrectIndex,
		q.TimeLimitSeconds, q.Points, q.Explanation,
	).Scan(&q.ID, &q.CreatedAt)
}

// Update replaces a question's fields.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET category = $1, difficulty = $2, text = $3, choices = $4,
		     correct_index = $5, time_limit_seconds = $6, points = $7,
		     explanation = NULLIF($8, '')
		 WHERE id = $9`,
		q.Category, q.Difficulty, q.Text, q.Choices, q.CorrectIndex,
		q.TimeLimitSeconds, q.Points, q.Explanation, q.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("question %s not found", q.ID)
	}
	return nil
}

// Delete removes a question.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("question %s not found", id)
	}
	return nil
}
