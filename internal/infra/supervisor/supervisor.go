package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

const shutdownTimeout = 15 * time.Second

// New создаёт корневой супервизор. События перезапуска пишутся в zerolog.
func New(name string, log zerolog.Logger) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}

// Service даёт имя функции, работающей до отмены контекста.
type Service struct {
	name string
	run  func(ctx context.Context) error
}

// Named оборачивает функцию в suture.Service.
func Named(name string, run func(ctx context.Context) error) *Service {
	return &Service{name: name, run: run}
}

// Serve реализует suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	return s.run(ctx)
}

// String используется suture в логах.
func (s *Service) String() string {
	return s.name
}
