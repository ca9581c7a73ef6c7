package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/handler"
	"github.com/quizroom/quizroom-backend/internal/middleware"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Session  *handler.SessionHandler
	Question *handler.QuestionHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.GET("/me", middleware.RequireHostJWT(authService), handlers.Auth.Me)
		auth.POST("/logout", middleware.RequireHostJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. WebSocket Group ────────────────────────────────────────────
	// Player streams are open: the join code is the credential. Observer
	// streams require a host token passed as a query param.
	ws := router.Group("/ws/v1")
	{
		ws.GET("/play", handlers.WS.PlayStream)
		ws.GET("/observe/:session_id",
			middleware.RequireHostWSAuth(authService),
			handlers.WS.ObserveStream,
		)
	}

	// ─── 3. Admin Group (Host JWT) ─────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireHostJWT(authService))
	{
		// Live session control plane.
		adminAPI.POST("/sessions", handlers.Session.Create)
		adminAPI.GET("/sessions", handlers.Session.List)
		adminAPI.GET("/sessions/history", handlers.Session.History)
		adminAPI.GET("/sessions/:session_id", handlers.Session.Get)
		adminAPI.POST("/sessions/:session_id/start", handlers.Session.Start)
		adminAPI.POST("/sessions/:session_id/pause", handlers.Session.Pause)
		adminAPI.POST("/sessions/:session_id/resume", handlers.Session.Resume)
		adminAPI.POST("/sessions/:session_id/end", handlers.Session.End)
		adminAPI.POST("/sessions/:session_id/reset", handlers.Session.Reset)
		adminAPI.GET("/sessions/:session_id/leaderboard", handlers.Session.Leaderboard)

		// Question bank.
		adminAPI.GET("/questions", handlers.Question.List)
		adminAPI.POST("/questions", handlers.Question.Create)
		adminAPI.PUT("/questions/:question_id", handlers.Question.Update)
		adminAPI.DELETE("/questions/:question_id", handlers.Question.Delete)
	}

	return router
}
