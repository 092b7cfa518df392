package main

import (
	"github.com/joho/godotenv"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "migrate")

	if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	logger.Info().Msg("migrations applied")
}
