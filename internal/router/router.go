package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizforge/attemptd/internal/auth"
	"github.com/quizforge/attemptd/internal/config"
	"github.com/quizforge/attemptd/internal/handler"
	"github.com/quizforge/attemptd/internal/middleware"
	"github.com/quizforge/attemptd/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *auth.Tokens,
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

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(tokens))
	{
		studentAPI.POST("/exams/:exam_id/attempt", handlers.Attempt.StartAttempt)
		studentAPI.GET("/exams/:exam_id/attempt", handlers.Attempt.GetState)
		studentAPI.GET("/exams/:exam_id/attempt/paper", handlers.Attempt.GetPaper)
		studentAPI.PUT("/exams/:exam_id/attempt/answers", handlers.Attempt.SaveAnswer)
		studentAPI.POST("/exams/:exam_id/attempt/submit", handlers.Attempt.Submit)
		studentAPI.POST("/exams/:exam_id/attempt/reconcile", handlers.Attempt.Reconcile)
		studentAPI.DELETE("/exams/:exam_id/attempt", handlers.Attempt.Abandon)
		studentAPI.GET("/exams/:exam_id/result", handlers.Attempt.GetResult)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(tokens))
	{
		ws.GET("/student/exams/:exam_id/attempt/stream", handlers.WS.AttemptStream)
	}

	return router
}
