package cli

import (
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"mock-interview/internal/api"
	"mock-interview/internal/config"
	"mock-interview/internal/interview"
	"mock-interview/internal/metrics"
	"mock-interview/internal/questions"
	"mock-interview/internal/storage"
)

// stack is the dependency graph shared by every front-end.
type stack struct {
	app       *config.AppConfig
	interview *config.Config
	questions *questions.Service
	store     storage.Store
	metrics   *metrics.Metrics
}

func buildStack() (*stack, error) {
	app := config.LoadAppConfig()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	return newStack(app, cfg)
}

func newStack(app *config.AppConfig, cfg *config.Config) (*stack, error) {
	bank, err := questions.LoadBank(cfg.QuestionBank)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()
	var generator *questions.Generator
	if app.Generator.Configured() {
		if err := app.Generator.ValidateConfig(); err != nil {
			return nil, err
		}
		generator = questions.NewGenerator(api.NewClient(app.Generator.APIConfig()), bank, m)
		log.Printf("questions: using model %s", app.Generator.Model)
	} else {
		log.Printf("questions: QUESTION_API_KEY not set, using the fallback bank only")
	}

	store, err := newStore(app.Store)
	if err != nil {
		return nil, err
	}

	return &stack{
		app:       app,
		interview: cfg,
		questions: questions.NewService(generator, bank, m),
		store:     store,
		metrics:   m,
	}, nil
}

func newStore(cfg config.StoreConfig) (storage.Store, error) {
	opts := []storage.StoreOption{storage.WithDirectory(cfg.ResultsDir)}

	switch storage.StoreType(cfg.Driver) {
	case storage.StoreTypeRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: REDIS_URL is required for the redis driver", storage.ErrInvalidConfig)
		}
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = append(opts, storage.WithRedisClient(redis.NewClient(redisOpts)), storage.WithRedisTTL(cfg.RedisTTL))
	case storage.StoreTypeSupabase:
		opts = append(opts, storage.WithSupabase(storage.SupabaseConfig{
			URL:         cfg.SupabaseURL,
			APIKey:      cfg.SupabaseKey,
			Table:       cfg.SupabaseTable,
			SetupsTable: cfg.SupabaseSetupsTable,
		}))
	}

	store, err := storage.NewStore(storage.StoreType(cfg.Driver), opts...)
	if err != nil {
		return nil, fmt.Errorf("store driver %q: %w", cfg.Driver, err)
	}
	return store, nil
}

func (s *stack) sessionConfig() interview.Config {
	return interview.Config{
		ListenDelay:            s.app.Session.ListenDelay,
		AdvanceDelay:           s.app.Session.AdvanceDelay,
		UnsupportedSpeechDelay: s.app.Session.UnsupportedSpeechDelay,
		PersistTimeout:         s.app.Session.PersistTimeout,
	}
}
