package recency

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tg-movie-bot/internal/domain"
	"tg-movie-bot/internal/infra/metrics"
)

// LegacyKey — ключ, под которым хранится список из старого формата (один общий список без получателей).
const LegacyKey = "__legacy__"

// DefaultMaxHistory ограничивает историю одного получателя.
const DefaultMaxHistory = 1000

// Store хранит для каждого получателя упорядоченный список недавно показанных фильмов.
// Все изменения сериализуются мьютексом, сохранение не блокирует чтение дольше снятия копии.
type Store struct {
	mu         sync.Mutex
	saveMu     sync.Mutex
	storage    domain.StateStorage
	log        zerolog.Logger
	maxHistory int
	entries    map[string][]int64
}

// NewStore создаёт пустое хранилище поверх указанного бэкенда.
func NewStore(storage domain.StateStorage, maxHistory int, log zerolog.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		storage:    storage,
		log:        log,
		maxHistory: maxHistory,
		entries:    make(map[string][]int64),
	}
}

// MaxHistory возвращает лимит истории на получателя.
func (s *Store) MaxHistory() int {
	return s.maxHistory
}

// Load читает состояние из бэкенда. Ошибки не возвращаются: при любой проблеме
// хранилище остаётся пустым, а причина пишется в лог.
func (s *Store) Load(ctx context.Context) {
	payload, err := s.storage.Read(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("recency: не удалось прочитать состояние, начинаем с пустой истории")
		s.replace(make(map[string][]int64))
		return
	}
	entries, err := Decode(payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("recency: повреждённое состояние, начинаем с пустой истории")
		s.replace(make(map[string][]int64))
		return
	}
	for key, ids := range entries {
		entries[key] = s.trim(dedupe(ids))
	}
	s.replace(entries)
	s.log.Info().Int("recipients", len(entries)).Msg("recency: состояние загружено")
}

func (s *Store) replace(entries map[string][]int64) {
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// Get возвращает копию истории получателя, создавая пустую запись при первом обращении.
func (s *Store) Get(recipient string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.entryLocked(recipient)
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// Unseen возвращает идентификаторы из candidates, которых нет в истории получателя.
// Порядок кандидатов сохраняется.
func (s *Store) Unseen(recipient string, candidates []int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.entryLocked(recipient)
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	out := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := seen[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Record добавляет фильм в конец истории и вытесняет самый старый при превышении лимита.
// Повторная запись того же идентификатора ничего не меняет и возвращает false.
func (s *Store) Record(recipient string, movieID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.entryLocked(recipient)
	for _, id := range ids {
		if id == movieID {
			return false
		}
	}
	s.entries[recipient] = s.trim(append(ids, movieID))
	return true
}

// Reset очищает историю одного получателя.
func (s *Store) Reset(recipient string) {
	s.mu.Lock()
	s.entries[recipient] = []int64{}
	s.mu.Unlock()
}

// Snapshot возвращает глубокую копию всех записей.
func (s *Store) Snapshot() map[string][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]int64, len(s.entries))
	for key, ids := range s.entries {
		cp := make([]int64, len(ids))
		copy(cp, ids)
		out[key] = cp
	}
	return out
}

// Save сериализует всё состояние в бэкенд. Ошибка логируется и возвращается,
// содержимое памяти при этом остаётся актуальным.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	payload, err := Encode(s.Snapshot())
	if err != nil {
		metrics.RecencySaveErrors.Inc()
		s.log.Error().Err(err).Msg("recency: не удалось сериализовать состояние")
		return err
	}
	if err := s.storage.Write(ctx, payload); err != nil {
		metrics.RecencySaveErrors.Inc()
		s.log.Error().Err(err).Msg("recency: не удалось сохранить состояние")
		return fmt.Errorf("запись состояния: %w", err)
	}
	return nil
}

func (s *Store) entryLocked(recipient string) []int64 {
	ids, ok := s.entries[recipient]
	if !ok {
		ids = []int64{}
		s.entries[recipient] = ids
	}
	return ids
}

// dedupe убирает повторы, сохраняя первое вхождение и порядок.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Store) trim(ids []int64) []int64 {
	if len(ids) <= s.maxHistory {
		return ids
	}
	out := make([]int64, s.maxHistory)
	copy(out, ids[len(ids)-s.maxHistory:])
	return out
}

// Decode разбирает сохранённое состояние. Пустой ввод даёт пустую карту,
// список верхнего уровня (старый формат) оборачивается в LegacyKey.
func Decode(payload []byte) (map[string][]int64, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return make(map[string][]int64), nil
	}
	if trimmed[0] == '[' {
		var legacy []int64
		if err := json.Unmarshal(trimmed, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy list: %w", err)
		}
		if legacy == nil {
			legacy = []int64{}
		}
		return map[string][]int64{LegacyKey: legacy}, nil
	}
	var entries map[string][]int64
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if entries == nil {
		entries = make(map[string][]int64)
	}
	for key, ids := range entries {
		if ids == nil {
			entries[key] = []int64{}
		}
	}
	return entries, nil
}

// Encode сериализует состояние в JSON-объект «получатель → список id».
func Encode(entries map[string][]int64) ([]byte, error) {
	if entries == nil {
		entries = make(map[string][]int64)
	}
	return json.Marshal(entries)
}
