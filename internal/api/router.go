package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pramothar/farmwith/internal/api/handlers"
	"github.com/pramothar/farmwith/internal/api/middleware"
	"github.com/pramothar/farmwith/internal/auth"
	"github.com/pramothar/farmwith/internal/config"
	"github.com/pramothar/farmwith/internal/db/repository"
	"github.com/pramothar/farmwith/internal/oidc"
)

// totpIssuer is the account issuer shown in authenticator apps
const totpIssuer = "FarmWith"

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	tokens *auth.TokenIssuer,
	mailer handlers.MailSender,
	ssoClient handlers.SSOClient,
) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	// Create handlers
	authHandler := handlers.NewAuthHandler(cfg, userRepo, tokens, mailer)
	mfaHandler := handlers.NewMFAHandler(userRepo, totpIssuer)
	ssoHandler := handlers.NewSSOHandler(cfg, userRepo, tokens, ssoClient, oidc.NewStateCodec(cfg.Session.Secret))

	authGroup := router.Group("/auth")
	{
		// Public endpoints
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/config", authHandler.Config)
		authGroup.POST("/forgot", authHandler.ForgotPassword)

		// SSO round trip
		authGroup.GET("/sso/login", ssoHandler.Login)
		authGroup.GET("/sso/callback", ssoHandler.Callback)

		// Endpoints requiring a bearer token
		protected := authGroup.Group("")
		protected.Use(middleware.BearerAuth(tokens, userRepo))
		{
			protected.GET("/me", authHandler.Me)
			protected.POST("/mfa/setup", mfaHandler.Setup)
			protected.POST("/mfa/verify", mfaHandler.Verify)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.router.Run(s.config.Server.ListenAddr)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
