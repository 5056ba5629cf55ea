package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quorum/internal/backend"
	"github.com/sells-group/quorum/internal/model"
	"github.com/sells-group/quorum/internal/round"
	"github.com/sells-group/quorum/internal/scoring"
	"github.com/sells-group/quorum/internal/session"
	"github.com/sells-group/quorum/internal/store"
	"github.com/sells-group/quorum/pkg/chatapi"
	"github.com/sells-group/quorum/pkg/claude"
)

// initStore opens the configured store, or returns nil when persistence is
// disabled (driver "none").
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildQueriers turns the configured roster into live backend adapters.
func buildQueriers() ([]backend.Querier, error) {
	queriers := make([]backend.Querier, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		switch b.Kind {
		case model.BackendKindChat:
			key := b.APIKey
			if key == "" {
				key = cfg.Chat.Key
			}
			client := chatapi.NewClient(key, chatapi.WithBaseURL(b.BaseURL))
			queriers = append(queriers, backend.NewChat(b, client))
		case model.BackendKindClaude:
			key := b.APIKey
			if key == "" {
				key = cfg.Anthropic.Key
			}
			var opts []option.RequestOption
			if b.BaseURL != "" {
				opts = append(opts, option.WithBaseURL(b.BaseURL))
			}
			queriers = append(queriers, backend.NewClaude(b, claude.NewClient(key, opts...)))
		default:
			return nil, eris.Errorf("backend %s: unknown kind %q", b.ID, b.Kind)
		}
	}
	return queriers, nil
}

// initSession wires a coordinator, engine, and session over the configured
// roster. sink may be nil.
func initSession(sink session.RoundSink) (*session.Session, error) {
	queriers, err := buildQueriers()
	if err != nil {
		return nil, err
	}

	cmp, err := scoring.ByName(cfg.Scoring.Comparator)
	if err != nil {
		return nil, err
	}
	engine := scoring.NewEngine(cmp, scoring.Config{
		RewardScale:          cfg.Scoring.RewardScale,
		PenaltyScale:         cfg.Scoring.PenaltyScale,
		ParticipationPenalty: cfg.Scoring.ParticipationPenalty,
		DivergenceThreshold:  cfg.Scoring.DivergenceThreshold,
	})

	coord := round.New(queriers, cfg.Round.Deadline())
	sess := session.New(coord, engine, sink)

	zap.L().Info("session opened",
		zap.String("session_id", sess.ID),
		zap.Int("backends", len(queriers)),
		zap.String("comparator", cmp.Name()),
	)
	return sess, nil
}

// sessionEnv bundles a session with its optional store so commands can tear
// both down in one call.
type sessionEnv struct {
	Session *session.Session
	Store   store.Store
}

func initSessionEnv(ctx context.Context) (*sessionEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var sink session.RoundSink
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		sink = st
	}

	sess, err := initSession(sink)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	return &sessionEnv{Session: sess, Store: st}, nil
}

func (e *sessionEnv) Close() {
	e.Session.Close()
	if e.Store != nil {
		_ = e.Store.Close()
	}
}
