// Command seed loads a JSON file of movies into the catalog.
//
// The file holds an array of {"title": "...", "image": "..."} objects. Titles
// already present are skipped, so the command can be rerun.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/dsmovie/internal/catalog"
	"github.com/Clark-Hu/dsmovie/internal/config"
	"github.com/Clark-Hu/dsmovie/internal/logging"
	"github.com/Clark-Hu/dsmovie/internal/repository"
	"github.com/Clark-Hu/dsmovie/internal/store"
)

type movieEntry struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

func main() {
	data := flag.String("data", "movies.json", "path to movie data file")
	flag.Parse()

	logger, err := logging.New("info")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logging.Component(logger, "seed")

	entries, err := readEntries(*data)
	if err != nil {
		logger.Fatal("read movie data", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               2,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	repo := repository.New(st)
	svc := catalog.New(repo.Movies, nil, logger)

	existing, err := existingTitles(ctx, svc)
	if err != nil {
		logger.Fatal("list existing movies", zap.Error(err))
	}

	inserted := 0
	for _, e := range entries {
		if existing[strings.ToLower(e.Title)] {
			continue
		}
		if _, err := svc.Insert(ctx, repository.MovieParams{Title: e.Title, Image: e.Image}); err != nil {
			logger.Fatal("insert movie", zap.String("title", e.Title), zap.Error(err))
		}
		existing[strings.ToLower(e.Title)] = true
		inserted++
	}
	logger.Info("seed complete", zap.Int("inserted", inserted), zap.Int("skipped", len(entries)-inserted))
}

func readEntries(path string) ([]movieEntry, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []movieEntry
	if err := json.Unmarshal(file, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range entries {
		entries[i].Title = strings.TrimSpace(entries[i].Title)
		entries[i].Image = strings.TrimSpace(entries[i].Image)
		if entries[i].Title == "" {
			return nil, fmt.Errorf("entry %d has no title", i)
		}
	}
	return entries, nil
}

func existingTitles(ctx context.Context, svc *catalog.Service) (map[string]bool, error) {
	titles := make(map[string]bool)
	q := catalog.Query{Limit: 100}
	for {
		page, err := svc.List(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, m := range page.Items {
			titles[strings.ToLower(m.Title)] = true
		}
		if page.NextCursor == nil {
			return titles, nil
		}
		q.Cursor = *page.NextCursor
	}
}
