package main

import (
	"context"
	"os"

	"github.com/smis-school/smis/internal/pkg/logger"
	"github.com/smis-school/smis/internal/server"
)

// @title SMIS API
// @version 1.0
// @description School management API for students, teachers, heads of department, finance and administrators.

// @contact.name SMIS Support
// @contact.email support@smis.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization, as "Bearer <token>"

func main() {
	srv, err := server.NewServer(context.Background(), os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
