package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/game"
	"github.com/quizroom/quizroom-backend/internal/middleware"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/repository"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/validator"
)

// SessionHandler handles the host control plane for live sessions and the
// durable session history.
type SessionHandler struct {
	cfg      *config.Config
	engine   *game.Engine
	sessions *repository.SessionRepository
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(cfg *config.Config, engine *game.Engine, sessions *repository.SessionRepository) *SessionHandler {
	return &SessionHandler{
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
	}
}

// Create godoc
// POST /api/v1/admin/sessions
// Creates a session in waiting state and returns its join code.
func (h *SessionHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	settings := h.settingsFromRequest(&req)

	session, err := h.engine.CreateSession(c.Request.Context(), claims.HostID, settings)
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrQuestionBankUnavailable)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id": session.ID,
		"join_code":  session.JoinCode,
		"settings":   settings,
	})
}

// List godoc
// GET /api/v1/admin/sessions
// Lists every live session owned by the calling host.
func (h *SessionHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	all := h.engine.ListSessions()
	own := make([]*model.SessionSnapshot, 0, len(all))
	for _, s := range all {
		if s.HostID == claims.HostID {
			own = append(own, s)
		}
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": own})
}

// Get godoc
// GET /api/v1/admin/sessions/:session_id
// Returns a point-in-time snapshot of one live session.
func (h *SessionHandler) Get(c *gin.Context) {
	snap, ok := h.ownedSession(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": snap})
}

// Start godoc
// POST /api/v1/admin/sessions/:session_id/start
func (h *SessionHandler) Start(c *gin.Context) {
	h.control(c, h.engine.Start)
}

// Pause godoc
// POST /api/v1/admin/sessions/:session_id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	h.control(c, h.engine.Pause)
}

// Resume godoc
// POST /api/v1/admin/sessions/:session_id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	h.control(c, h.engine.Resume)
}

// End godoc
// POST /api/v1/admin/sessions/:session_id/end
func (h *SessionHandler) End(c *gin.Context) {
	h.control(c, h.engine.End)
}

// Reset godoc
// POST /api/v1/admin/sessions/:session_id/reset
// Ends the session and creates a fresh one with the same settings and a new
// join code.
func (h *SessionHandler) Reset(c *gin.Context) {
	snap, ok := h.ownedSession(c)
	if !ok {
		return
	}

	fresh, err := h.engine.Reset(c.Request.Context(), snap.ID)
	if err != nil {
		h.failGame(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id": fresh.ID,
		"join_code":  fresh.JoinCode,
	})
}

// History godoc
// GET /api/v1/admin/sessions/history?page=&per_page=
// Lists the host's completed and persisted sessions, newest first.
func (h *SessionHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := paginationParams(c)

	items, total, err := h.sessions.ListByHost(c.Request.Context(), claims.HostID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": items}, buildPagination(page, perPage, total))
}

// Leaderboard godoc
// GET /api/v1/admin/sessions/:session_id/leaderboard
// Returns the persisted final leaderboard of a session.
func (h *SessionHandler) Leaderboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	entries, err := h.sessions.Leaderboard(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}

// ─── Helpers ────────────────────────────────────────────────────────

// control runs one lifecycle action after the ownership check.
func (h *SessionHandler) control(c *gin.Context, action func(uuid.UUID) error) {
	snap, ok := h.ownedSession(c)
	if !ok {
		return
	}

	if err := action(snap.ID); err != nil {
		h.failGame(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// ownedSession resolves :session_id to a live session owned by the caller.
// Writes the error response itself when the lookup fails.
func (h *SessionHandler) ownedSession(c *gin.Context) (*model.SessionSnapshot, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	snap, err := h.engine.Describe(sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return nil, false
	}
	if snap.HostID != claims.HostID {
		response.Fail(c, http.StatusForbidden, response.ErrNotSessionHost)
		return nil, false
	}
	return snap, true
}

func (h *SessionHandler) failGame(c *gin.Context, err error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, game.ErrSessionClosed):
		response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
	case errors.Is(err, game.ErrSessionUnavailable):
		response.Fail(c, http.StatusConflict, response.ErrSessionUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// settingsFromRequest applies configured defaults to unset fields.
func (h *SessionHandler) settingsFromRequest(req *model.CreateSessionRequest) model.SessionSettings {
	settings := model.SessionSettings{
		MaxPlayers:       req.MaxPlayers,
		QuestionCount:    req.QuestionCount,
		Difficulty:       req.Difficulty,
		Categories:       req.Categories,
		TimeLimitSeconds: req.TimeLimitSeconds,
		Points:           req.Points,
		TimeBonus:        h.cfg.DefaultTimeBonus,
	}
	if settings.MaxPlayers == 0 {
		settings.MaxPlayers = h.cfg.DefaultMaxPlayers
	}
	if settings.QuestionCount == 0 {
		settings.QuestionCount = h.cfg.DefaultQuestionCount
	}
	if settings.Difficulty == "" {
		settings.Difficulty = model.DifficultyAny
	}
	if settings.TimeLimitSeconds == 0 {
		settings.TimeLimitSeconds = int(h.cfg.DefaultTimeLimit.Seconds())
	}
	if settings.Points == 0 {
		settings.Points = h.cfg.DefaultPoints
	}
	if req.TimeBonus != nil {
		settings.TimeBonus = *req.TimeBonus
	}
	return settings
}

func paginationParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func buildPagination(page, perPage int, total int64) *response.Pagination {
	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	}
}
