package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oscelab/osce-backend/internal/auth"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/handler"
	"github.com/oscelab/osce-backend/internal/middleware"
	"github.com/oscelab/osce-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth               *handler.AuthHandler
	Case               *handler.CaseHandler
	Student            *handler.StudentHandler
	CompetitionAdmin   *handler.CompetitionAdminHandler
	CompetitionStudent *handler.CompetitionStudentHandler
	Monitor            *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *auth.Service,
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

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authAPI := router.Group("/api/v1/auth")
	authAPI.Use(authLimiter.Middleware())
	{
		authAPI.POST("/student/login", handlers.Auth.StudentLogin)
		authAPI.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		authAPI.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		authAPI.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		authAPI.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/sessions", handlers.CompetitionStudent.ListMySessions)
		studentAPI.POST("/sessions/:id/join", handlers.CompetitionStudent.Join)
		studentAPI.GET("/sessions/:id/status", handlers.CompetitionStudent.Status)
		studentAPI.POST("/sessions/:id/station/start", handlers.CompetitionStudent.StartStation)
		studentAPI.POST("/sessions/:id/station/message", handlers.CompetitionStudent.PatientMessage)
		studentAPI.POST("/sessions/:id/station/complete", handlers.CompetitionStudent.CompleteStation)
		studentAPI.GET("/sessions/:id/score", handlers.CompetitionStudent.Score)
		studentAPI.GET("/sessions/:id/leaderboard", handlers.CompetitionStudent.Leaderboard)
	}

	// ─── 3. WebSocket Group (Admin WS Auth) ────────────────────────────
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(middleware.RequireAdminWSAuth(authService))
	{
		wsAPI.GET("/admin/sessions/:id/monitor", handlers.Monitor.MonitorSession)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Student account management
		adminAPI.GET("/students", handlers.Student.List)
		adminAPI.POST("/students", handlers.Student.Create)
		adminAPI.PUT("/students/:id", handlers.Student.Update)
		adminAPI.DELETE("/students/:id", handlers.Student.Delete)
		adminAPI.POST("/students/:id/reset-login", handlers.Student.ResetLogin)

		// Case library
		adminAPI.GET("/cases", handlers.Case.List)
		adminAPI.GET("/cases/:id", handlers.Case.Get)
		adminAPI.POST("/cases", handlers.Case.Create)
		adminAPI.PUT("/cases/:id", handlers.Case.Update)
		adminAPI.DELETE("/cases/:id", handlers.Case.Delete)

		// Competition sessions
		adminAPI.GET("/sessions", handlers.CompetitionAdmin.List)
		adminAPI.POST("/sessions", handlers.CompetitionAdmin.Create)
		adminAPI.GET("/sessions/:id", handlers.CompetitionAdmin.Get)
		adminAPI.PUT("/sessions/:id", handlers.CompetitionAdmin.Update)
		adminAPI.DELETE("/sessions/:id", handlers.CompetitionAdmin.Delete)
		adminAPI.POST("/sessions/:id/cancel", handlers.CompetitionAdmin.Cancel)
		adminAPI.POST("/sessions/:id/force-start", handlers.CompetitionAdmin.ForceStart)
		adminAPI.POST("/sessions/:id/pause", handlers.CompetitionAdmin.Pause)
		adminAPI.POST("/sessions/:id/resume", handlers.CompetitionAdmin.Resume)
		adminAPI.POST("/sessions/:id/end", handlers.CompetitionAdmin.End)
		adminAPI.GET("/sessions/:id/participants", handlers.CompetitionAdmin.Roster)
		adminAPI.GET("/sessions/:id/bank", handlers.CompetitionAdmin.Bank)
		adminAPI.GET("/sessions/:id/overview", handlers.CompetitionAdmin.Overview)
		adminAPI.GET("/sessions/:id/leaderboard", handlers.CompetitionAdmin.Leaderboard)
		adminAPI.POST("/sessions/:id/participants/:studentID/reset", handlers.CompetitionAdmin.ResetParticipant)
	}

	return router
}
