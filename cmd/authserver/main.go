package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pramothar/farmwith/internal/api"
	"github.com/pramothar/farmwith/internal/api/handlers"
	"github.com/pramothar/farmwith/internal/auth"
	"github.com/pramothar/farmwith/internal/config"
	"github.com/pramothar/farmwith/internal/db"
	"github.com/pramothar/farmwith/internal/db/repository"
	"github.com/pramothar/farmwith/internal/mail"
	"github.com/pramothar/farmwith/internal/oidc"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("FarmWith Auth Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	log.Printf("Starting FarmWith Auth Server %s (commit: %s)", Version, Commit)

	// Load configuration
	log.Printf("Loading configuration from %s", *configPath)
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	log.Printf("Connecting to database: %s", cfg.Database.Path)
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	log.Printf("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database.DB)
	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.AccessTokenDuration(), cfg.RememberTokenDuration())
	mailer := mail.NewSender(cfg.SMTP)

	// The relying-party client is built once here and injected; SSO stays
	// reachable-but-unavailable when provider discovery fails at startup.
	var ssoClient *oidc.Client
	if cfg.SSOEnabled() {
		ssoClient, err = oidc.NewClient(context.Background(), cfg)
		if err != nil {
			log.Printf("WARNING: SSO configured but provider setup failed: %v", err)
		} else {
			log.Printf("SSO enabled via provider %q", cfg.SSO.ProviderName)
		}
	}

	server := api.NewServer(cfg, userRepo, tokens, mailer, ssoClientOrNil(ssoClient))

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on %s", cfg.Server.ListenAddr)
		if err := server.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-quit
	log.Printf("Shutting down server...")

	database.Close()

	log.Printf("Server stopped")
}

// ssoClientOrNil avoids handing the server a typed nil inside the interface
func ssoClientOrNil(c *oidc.Client) handlers.SSOClient {
	if c == nil {
		return nil
	}
	return c
}
