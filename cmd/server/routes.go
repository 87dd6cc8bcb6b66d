package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"kwala.backend/internal/interfaces/http/handlers"
	"kwala.backend/internal/interfaces/http/middleware"
	"kwala.backend/pkg/metrics"
)

const (
	serviceName    = "kwala-backend"
	serviceVersion = "1.0.0"
)

type routeDeps struct {
	authHandler     *handlers.AuthHandler
	chatHandler     *handlers.ChatHandler
	humanizeHandler *handlers.HumanizeHandler
	authMiddleware  gin.HandlerFunc
	humanizeGuard   gin.HandlerFunc
}

func registerAPIRoutes(r *gin.Engine, d routeDeps) {
	api := r.Group("/api")
	{
		// Account and code routes (public)
		api.POST("/register", d.authHandler.Register)
		api.POST("/login", d.authHandler.Login)
		api.POST("/verify-email", d.authHandler.VerifyEmail)
		api.POST("/resend-verification", d.authHandler.ResendVerification)
		api.GET("/verification-status/:email", d.authHandler.VerificationStatus)
		api.POST("/forgot-password", d.authHandler.ForgotPassword)
		api.POST("/reset-password", d.authHandler.ResetPassword)
		api.GET("/reset-password-status/:email", d.authHandler.ResetPasswordStatus)

		// Protected routes
		protected := api.Group("")
		protected.Use(d.authMiddleware)
		{
			protected.GET("/verify-token", d.authHandler.VerifyToken)
			protected.POST("/chat/completion", d.chatHandler.Completion)
			protected.POST("/humanize", d.humanizeGuard, d.humanizeHandler.Humanize)
		}
	}
}

// humanizeGuard allows one humanize request per user at a time.
func humanizeGuard(locker middleware.Locker, ttl time.Duration) gin.HandlerFunc {
	return middleware.InFlightMiddleware(locker, "humanize", ttl,
		metrics.HumanizeRequests.WithLabelValues(metrics.ResultBusy))
}

func applyCORSMiddleware(r *gin.Engine, allowedOrigins []string) {
	r.Use(middleware.CORSMiddleware(allowedOrigins))
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
