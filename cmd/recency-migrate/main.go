package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tg-movie-bot/internal/adapters/repo"
	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/config"
	"tg-movie-bot/internal/infra/state"
	"tg-movie-bot/internal/usecase/recency"
)

func main() {
	var (
		from   string
		to     string
		file   string
		dryRun bool
	)
	flag.StringVar(&from, "from", config.RecencyBackendFile, "Source backend: file, redis or postgres")
	flag.StringVar(&to, "to", config.RecencyBackendPostgres, "Target backend: file, redis or postgres")
	flag.StringVar(&file, "file", "", "Path to the history file (defaults to RECENCY_FILE)")
	flag.BoolVar(&dryRun, "dry-run", false, "Decode and re-encode without writing to the target")
	flag.Parse()

	if from == to && !dryRun {
		log.Fatal().Msg("recency-migrate: source and target backends must differ")
	}

	cfg := config.Load()
	if file == "" {
		file = cfg.Recency.File
	}
	backend := func(kind string) repo.Backend {
		return repo.Backend{
			Kind:      kind,
			File:      file,
			Key:       cfg.Recency.Key,
			PGDSN:     cfg.PGDSN,
			RedisAddr: cfg.RedisAddr,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	source, closeSource, err := repo.OpenState(ctx, backend(from))
	if err != nil {
		log.Fatal().Err(err).Str("backend", from).Msg("recency-migrate: failed to open source")
	}
	defer closeSource()

	var target domain.StateStorage = &state.Memory{}
	if !dryRun {
		var closeTarget func()
		target, closeTarget, err = repo.OpenState(ctx, backend(to))
		if err != nil {
			log.Fatal().Err(err).Str("backend", to).Msg("recency-migrate: failed to open target")
		}
		defer closeTarget()
	}

	recipients, ids, err := migrate(ctx, source, target)
	if err != nil {
		log.Fatal().Err(err).Msg("recency-migrate: migration failed")
	}
	if dryRun {
		fmt.Printf("Dry run: %d recipients, %d ids decoded from %s\n", recipients, ids, from)
		return
	}
	fmt.Printf("Migrated %d recipients (%d ids) from %s to %s\n", recipients, ids, from, to)
}

// migrate переносит историю, пропуская её через декодер, чтобы старый формат списка был преобразован.
func migrate(ctx context.Context, source, target domain.StateStorage) (int, int, error) {
	payload, err := source.Read(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("чтение источника: %w", err)
	}
	entries, err := recency.Decode(payload)
	if err != nil {
		return 0, 0, fmt.Errorf("разбор истории: %w", err)
	}
	encoded, err := recency.Encode(entries)
	if err != nil {
		return 0, 0, fmt.Errorf("сериализация истории: %w", err)
	}
	if err := target.Write(ctx, encoded); err != nil {
		return 0, 0, fmt.Errorf("запись в приёмник: %w", err)
	}
	ids := 0
	for _, list := range entries {
		ids += len(list)
	}
	return len(entries), ids, nil
}
