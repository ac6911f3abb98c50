package main

import (
	"predictpro/internal/config"
	"predictpro/internal/db"
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig()
	db.Migrate(cfg.DSN())
}
