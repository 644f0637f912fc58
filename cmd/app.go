package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/agent/agents/orchestrator"
	"github.com/MazarSayed/stock-platform/agent/agents/specialist"
	"github.com/MazarSayed/stock-platform/agent/assistant"
	"github.com/MazarSayed/stock-platform/agent/guardrail"
	llmx "github.com/MazarSayed/stock-platform/agent/llm"
	"github.com/MazarSayed/stock-platform/agent/rag"
	"github.com/MazarSayed/stock-platform/agent/session"
	statex "github.com/MazarSayed/stock-platform/agent/state"
	toolx "github.com/MazarSayed/stock-platform/agent/tool"
	configx "github.com/MazarSayed/stock-platform/pkg/config"
	openrouterx "github.com/MazarSayed/stock-platform/pkg/openrouter"
	qstashx "github.com/MazarSayed/stock-platform/pkg/qstash"
	"github.com/MazarSayed/stock-platform/pkg/websearch"
)

type AppConfig struct {
	Addr              string        `envconfig:"ADDR" default:":8000"`
	DBDSN             string        `envconfig:"DB_DSN" default:"file:data/state.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`
	CorpusPath        string        `envconfig:"CORPUS_PATH" default:"data/corpus.json"`
	Retriever         string        `envconfig:"RETRIEVER" default:"keyword"`
	CheckpointBackend string        `envconfig:"CHECKPOINT_BACKEND" default:"memory"`
	LedgerBackend     string        `envconfig:"LEDGER_BACKEND" default:"memory"`
	WebSearch         string        `envconfig:"WEB_SEARCH" default:"duckduckgo"`
	TurnTimeout       time.Duration `envconfig:"TURN_TIMEOUT" default:"90s"`
	MaxRunSteps       int           `envconfig:"MAX_RUN_STEPS" default:"10"`
	AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// app holds the wired assistant and whatever must be closed on exit.
type app struct {
	cfg       AppConfig
	assistant *assistant.Service
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}

	a := &app{cfg: *cfg}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	sessions, err := session.Open(cfg.DBDSN)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, sessions.Close)
	if err := sessions.Migrate(ctx); err != nil {
		return fail(err)
	}

	checkpoints, err := buildCheckpointer(cfg.CheckpointBackend)
	if err != nil {
		return fail(err)
	}

	ledger, err := buildLedger(ctx, cfg.LedgerBackend)
	if err != nil {
		return fail(err)
	}

	documents, err := buildRetriever(ctx, a, *cfg, *llmCfg)
	if err != nil {
		return fail(err)
	}

	web, err := buildWebSearch(cfg.WebSearch)
	if err != nil {
		return fail(err)
	}

	deps := toolx.Deps{
		Guard:     guardrail.NewToolGuardrails(ledger),
		Documents: documents,
		Web:       web,
		Alerts:    buildAlerts(),
	}

	registry, err := specialist.NewRegistry(ctx, *llmCfg, deps)
	if err != nil {
		return fail(err)
	}

	orch, err := orchestrator.New(checkpoints, registry, orchestrator.Config{MaxRunSteps: cfg.MaxRunSteps})
	if err != nil {
		return fail(err)
	}

	svc, err := assistant.New(
		guardrail.NewInputGuardrails(),
		guardrail.NewOutputGuardrails(),
		orch,
		sessions,
		assistant.Config{TurnTimeout: cfg.TurnTimeout},
	)
	if err != nil {
		return fail(err)
	}
	a.assistant = svc

	return a, nil
}

func buildCheckpointer(backend string) (statex.Checkpointer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return statex.NewMemoryCheckpointer(), nil
	case "upstash":
		upCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		return statex.NewUpstashCheckpointer(*upCfg)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}

func buildLedger(ctx context.Context, backend string) (guardrail.Ledger, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return guardrail.NewMemoryLedger(), nil
	case "redis":
		redisCfg, err := configx.New[guardrail.RedisLedgerConfig]("REDIS")
		if err != nil {
			return nil, fmt.Errorf("load redis config: %w", err)
		}
		return guardrail.DialRedisLedger(ctx, *redisCfg)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

func buildRetriever(ctx context.Context, a *app, cfg AppConfig, llmCfg llmx.Config) (rag.Searcher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Retriever)) {
	case "", "keyword":
		docs, err := rag.LoadCorpus(cfg.CorpusPath)
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", cfg.CorpusPath).Msg("corpus not found, retrieval starts empty")
			return rag.NewKeywordSearcher(nil), nil
		}
		if err != nil {
			return nil, err
		}
		log.Info().Int("documents", len(docs)).Str("path", cfg.CorpusPath).Msg("corpus loaded")
		return rag.NewKeywordSearcher(docs), nil
	case "pgvector":
		pg, err := openPgvector(ctx, llmCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.close)
		return pg.searcher, nil
	default:
		return nil, fmt.Errorf("unknown retriever %q", cfg.Retriever)
	}
}

type pgvectorHandle struct {
	searcher *rag.PgvectorSearcher
	close    func() error
}

func openPgvector(ctx context.Context, llmCfg llmx.Config) (*pgvectorHandle, error) {
	pgCfg, err := configx.New[rag.PgvectorConfig]("PGVECTOR")
	if err != nil {
		return nil, fmt.Errorf("load pgvector config: %w", err)
	}
	if strings.TrimSpace(pgCfg.DSN) == "" {
		return nil, errors.New("PGVECTOR_DSN is required for the pgvector retriever")
	}

	client := openrouterx.NewClient(llmCfg.OpenRouterFor(""))
	if client == nil {
		return nil, errors.New("an LLM api key is required for embeddings")
	}
	embedder, err := rag.NewOpenAIEmbedder(client, pgCfg.EmbeddingModel, pgCfg.Dimensions)
	if err != nil {
		return nil, err
	}

	db := rag.OpenPostgres(pgCfg.DSN)
	searcher, err := rag.NewPgvectorSearcher(db, embedder, pgCfg.Dimensions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := searcher.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &pgvectorHandle{searcher: searcher, close: db.Close}, nil
}

func buildWebSearch(kind string) (websearch.Searcher, error) {
	tavilyCfg, err := configx.New[websearch.TavilyConfig]("TAVILY")
	if err != nil {
		return nil, fmt.Errorf("load tavily config: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "none":
		return nil, nil
	case "tavily":
		return websearch.NewTavily(*tavilyCfg)
	case "", "duckduckgo":
		if strings.TrimSpace(tavilyCfg.APIKey) != "" {
			return websearch.NewTavily(*tavilyCfg)
		}
		return websearch.NewDuckDuckGo("", tavilyCfg.MaxResults), nil
	default:
		return nil, fmt.Errorf("unknown web search provider %q", kind)
	}
}

// buildAlerts returns nil when QStash is not configured so that tools see
// a nil interface rather than a nil client.
func buildAlerts() toolx.AlertPublisher {
	qCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		log.Warn().Err(err).Msg("qstash config invalid, price alerts are not delivered")
		return nil
	}
	if !qCfg.Enabled() {
		return nil
	}
	client, err := qstashx.NewClient(*qCfg)
	if err != nil {
		log.Warn().Err(err).Msg("qstash client unavailable, price alerts are not delivered")
		return nil
	}
	return client
}
