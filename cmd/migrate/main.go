package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"NewsScanner/internal/config"
	"NewsScanner/pkg/logger"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		published_at TIMESTAMPTZ,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_processed BOOLEAN NOT NULL DEFAULT false,
		processing_attempts INTEGER NOT NULL DEFAULT 0,
		last_processing_error TEXT,
		last_processing_attempt TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id BIGSERIAL PRIMARY KEY,
		article_id BIGINT NOT NULL UNIQUE REFERENCES articles(id) ON DELETE CASCADE,
		summary_text TEXT NOT NULL,
		prompt_used TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_unprocessed
		ON articles (processing_attempts, id) WHERE is_processed = false`,
}

func main() {
	log := logger.New("migrate")

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("apply migration: %v", err)
		}
	}

	log.Println("schema is up to date")
}
