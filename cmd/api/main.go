package main

import (
	"log"

	"github.com/frontsight/frontsight/internal/config"
	"github.com/frontsight/frontsight/internal/httpserver"
	"github.com/frontsight/frontsight/internal/store"
)

// main boots the service: config → DB → schema → HTTP server.
func main() {
	// Load runtime config from environment (DB_URL, ADDR, DEBUG).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Connect to durable storage (SQLite or Postgres per DB_URL).
	db, err := store.Open(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Ensure required tables/indexes exist so a fresh checkout just runs.
	if err := db.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	// Build HTTP router (public health + project/event/stats APIs).
	router := httpserver.NewRouter(cfg, db)

	log.Printf("server started on %s", cfg.Addr)
	log.Fatal(router.Run(cfg.Addr))
}
