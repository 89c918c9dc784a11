// Command ingest embeds a JSONL book catalogue and replaces the contents of
// the retrieval index with it
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"bitwise74/smart-librarian/app"
	"bitwise74/smart-librarian/config"
	"bitwise74/smart-librarian/db"
	"bitwise74/smart-librarian/internal/rag"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	catalogue = pflag.String("file", "books.jsonl", "Path to the JSONL book catalogue")
	batch     = pflag.Int("batch", 64, "Number of books embedded per request")
)

func main() {
	cfg, err := config.Setup()
	if err != nil {
		panic(err)
	}

	if err := app.MakeLogger(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic(err)
	}

	log := zap.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f, err := os.Open(*catalogue)
	if err != nil {
		log.Fatal("Failed to open catalogue", zap.Error(err))
	}
	defer f.Close()

	books, err := rag.LoadBooks(f)
	if err != nil {
		log.Fatal("Failed to parse catalogue", zap.String("file", *catalogue), zap.Error(err))
	}

	if len(books) == 0 {
		log.Fatal("Catalogue is empty", zap.String("file", *catalogue))
	}

	oai, err := rag.NewOpenAI(cfg.OpenAI, cfg.Retrieval.Dimensions, time.Minute)
	if err != nil {
		log.Fatal("Failed to create OpenAI client", zap.Error(err))
	}
	defer oai.Close()

	booksDB, err := db.NewBooks(cfg.Retrieval.DSN)
	if err != nil {
		log.Fatal("Failed to open retrieval database", zap.Error(err))
	}

	start := time.Now()

	if err := rag.EmbedBooks(ctx, oai, books, *batch); err != nil {
		log.Fatal("Failed to embed books", zap.Error(err))
	}

	if err := rag.NewPGStore(booksDB).Replace(ctx, books); err != nil {
		log.Fatal("Failed to store books", zap.Error(err))
	}

	log.Info("Catalogue ingested", zap.Int("books", len(books)), zap.Duration("took", time.Since(start)))
}
