package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/questionbank"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/validator"
)

// QuestionHandler handles question bank CRUD for hosts.
type QuestionHandler struct {
	questions *repository.QuestionRepository
	bank      *questionbank.Bank
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions *repository.QuestionRepository, bank *questionbank.Bank) *QuestionHandler {
	return &QuestionHandler{
		questions: questions,
		bank:      bank,
	}
}

// List godoc
// GET /api/v1/admin/questions?page=&per_page=&category=&difficulty=
func (h *QuestionHandler) List(c *gin.Context) {
	page, perPage := paginationParams(c)

	items, total, err := h.questions.List(c.Request.Context(), page, perPage,
		c.Query("category"), c.Query("difficulty"))
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": items}, buildPagination(page, perPage, total))
}

// Create godoc
// POST /api/v1/admin/questions
func (h *QuestionHandler) Create(c *gin.Context) {
	req, ok := h.bindQuestion(c)
	if !ok {
		return
	}

	q := questionFromRequest(req)
	if err := h.questions.Create(c.Request.Context(), q); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.bank.Invalidate(c.Request.Context())
	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// Update godoc
// PUT /api/v1/admin/questions/:question_id
func (h *QuestionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	req, ok := h.bindQuestion(c)
	if !ok {
		return
	}

	q := questionFromRequest(req)
	q.ID = id
	if err := h.questions.Update(c.Request.Context(), q); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	h.bank.Invalidate(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// Delete godoc
// DELETE /api/v1/admin/questions/:question_id
func (h *QuestionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questions.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	h.bank.Invalidate(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{})
}

// bindQuestion validates the payload, including the correct index bound that
// the binding tags cannot express.
func (h *QuestionHandler) bindQuestion(c *gin.Context) (*model.QuestionRequest, bool) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return nil, false
	}
	if req.CorrectIndex >= len(req.Choices) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"correct_index": "must reference one of the choices"})
		return nil, false
	}
	return &req, true
}

func questionFromRequest(req *model.QuestionRequest) *model.Question {
	return &model.Question{
		Category:         req.Category,
		Difficulty:       req.Difficulty,
		Text:             req.Text,
		Choices:          req.Choices,
		CorrectIndex:     req.CorrectIndex,
		TimeLimitSeconds: req.TimeLimitSeconds,
		Points:           req.Points,
		Explanation:      req.Explanation,
	}
}
