package cli

import (
	"context"
	"os"
	"strings"

	"github.com/m-mizutani/dealscope/pkg/adapter"
	"github.com/m-mizutani/dealscope/pkg/agent/messenger"
	"github.com/m-mizutani/dealscope/pkg/embedding"
	"github.com/m-mizutani/dealscope/pkg/memory"
	"github.com/m-mizutani/dealscope/pkg/usecase/ingest"
	"github.com/m-mizutani/dealscope/pkg/usecase/pricing"
	"github.com/m-mizutani/dealscope/pkg/usecase/retrieval"
	"github.com/m-mizutani/dealscope/pkg/utils/logging"
	"github.com/m-mizutani/dealscope/pkg/vectorstore"
	"github.com/m-mizutani/dealscope/pkg/vectorstore/firestore"
	vsmemory "github.com/m-mizutani/dealscope/pkg/vectorstore/memory"
	"github.com/m-mizutani/dealscope/pkg/vectorstore/pgvector"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Vector store
	vectorStore string
	project     string
	database    string
	postgresDSN string
	collection  string

	// Models, as "provider:model"
	embeddingModel  string
	frontierModel   string
	specialistModel string
	preprocessModel string
	weightsFile     string

	// Adapters
	openaiAPIKey    string
	openaiBaseURL   string
	ollamaHost      string
	anthropicAPIKey string
	claudeModel     string
	geminiProject   string
	geminiLocation  string
	geminiModel     string

	// Notification
	pushoverUser  string
	pushoverToken string

	// Memory
	memoryLocation string
}

// loggingFlags returns flags for the logger with destination config
func loggingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("DEALSCOPE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("DEALSCOPE_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// storeFlags returns flags for the vector store with destination config
func storeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vector-store",
			Usage:       "Vector store backend (firestore, pgvector, memory)",
			Value:       "firestore",
			Sources:     cli.EnvVars("DEALSCOPE_VECTOR_STORE"),
			Destination: &cfg.vectorStore,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string for the pgvector backend",
			Sources:     cli.EnvVars("DEALSCOPE_POSTGRES_DSN"),
			Destination: &cfg.postgresDSN,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Vector store collection name",
			Value:       ingest.DefaultCollection,
			Sources:     cli.EnvVars("DEALSCOPE_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model as provider:model (ollama, openai, gemini)",
			Value:       embedding.DefaultModel,
			Sources:     cli.EnvVars("DEALSCOPE_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "frontier-model",
			Usage:       "Frontier pricing model as provider:model",
			Value:       "openai:gpt-4o-mini",
			Sources:     cli.EnvVars("DEALSCOPE_FRONTIER_MODEL"),
			Destination: &cfg.frontierModel,
		},
		&cli.StringFlag{
			Name:        "specialist-model",
			Usage:       "Specialist pricing model as provider:model",
			Value:       "ollama:llama3.2",
			Sources:     cli.EnvVars("DEALSCOPE_SPECIALIST_MODEL"),
			Destination: &cfg.specialistModel,
		},
		&cli.StringFlag{
			Name:        "preprocess-model",
			Usage:       "Model that rewrites descriptions before pricing, as provider:model (empty to disable)",
			Value:       "ollama:llama3.2",
			Sources:     cli.EnvVars("DEALSCOPE_PREPROCESS_MODEL"),
			Destination: &cfg.preprocessModel,
		},
		&cli.StringFlag{
			Name:        "weights",
			Usage:       "YAML file with ensemble weights",
			Sources:     cli.EnvVars("DEALSCOPE_WEIGHTS_FILE"),
			Destination: &cfg.weightsFile,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "OpenAI compatible API base URL",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "ollama-host",
			Usage:       "Ollama server URL (defaults to OLLAMA_HOST or localhost)",
			Sources:     cli.EnvVars("DEALSCOPE_OLLAMA_HOST"),
			Destination: &cfg.ollamaHost,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model for notification messages",
			Value:       adapter.DefaultClaudeModel,
			Sources:     cli.EnvVars("DEALSCOPE_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for deal selection and planning",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("DEALSCOPE_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// notifyFlags returns flags for push notifications with destination config
func notifyFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pushover-user",
			Usage:       "Pushover user key",
			Sources:     cli.EnvVars("PUSHOVER_USER"),
			Destination: &cfg.pushoverUser,
		},
		&cli.StringFlag{
			Name:        "pushover-token",
			Usage:       "Pushover application token",
			Sources:     cli.EnvVars("PUSHOVER_TOKEN"),
			Destination: &cfg.pushoverToken,
		},
	}
}

// memoryFlags returns flags for the opportunity memory with destination config
func memoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory",
			Aliases:     []string{"m"},
			Usage:       "Opportunity memory location (file path, gs://bucket/key, redis://host:port/db?key=name)",
			Value:       memory.DefaultLocation,
			Sources:     cli.EnvVars("DEALSCOPE_MEMORY"),
			Destination: &cfg.memoryLocation,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr, logging.WithFormat(cfg.logFormat))
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// splitModelSpec splits "provider:model". The model part may be empty.
func splitModelSpec(spec string) (string, string, error) {
	provider, model, _ := strings.Cut(spec, ":")
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "", "", goerr.New("model provider is required", goerr.V("spec", spec))
	}
	return provider, strings.TrimSpace(model), nil
}

// newVectorStore creates the configured vector store
func (cfg *config) newVectorStore(ctx context.Context) (vectorstore.Store, error) {
	switch cfg.vectorStore {
	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required")
		}
		store, err := firestore.New(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore vector store")
		}
		return store, nil

	case "pgvector", "postgres":
		if cfg.postgresDSN == "" {
			return nil, goerr.New("postgres-dsn is required")
		}
		store, err := pgvector.New(ctx, cfg.postgresDSN)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create pgvector store")
		}
		return store, nil

	case "memory":
		return vsmemory.New(), nil

	default:
		return nil, goerr.New("unknown vector store", goerr.V("vector_store", cfg.vectorStore))
	}
}

// openCollection creates the vector store and opens the configured collection
func (cfg *config) openCollection(ctx context.Context) (vectorstore.Store, vectorstore.Collection, error) {
	store, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	coll, err := store.Collection(ctx, cfg.collection)
	if err != nil {
		_ = store.Close()
		return nil, nil, goerr.Wrap(err, "failed to open collection", goerr.V("collection", cfg.collection))
	}
	return store, coll, nil
}

// newEmbedding creates the embedding model named by embeddingModel
func (cfg *config) newEmbedding(ctx context.Context) (*embedding.Model, error) {
	spec := cfg.embeddingModel
	if spec == "" {
		spec = embedding.DefaultModel
	}
	provider, model, err := splitModelSpec(spec)
	if err != nil {
		return nil, err
	}

	var embedder adapter.Embedder
	switch provider {
	case "ollama":
		opts := []adapter.OllamaOption{}
		if model != "" {
			opts = append(opts, adapter.WithOllamaEmbeddingModel(model))
		}
		client, err := adapter.NewOllama(cfg.ollamaHost, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create embedding model", goerr.V("spec", spec))
		}
		embedder = client

	case "openai":
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required", goerr.V("spec", spec))
		}
		opts := cfg.openaiOptions()
		if model != "" {
			opts = append(opts, adapter.WithOpenAIEmbeddingModel(model))
		}
		embedder = adapter.NewOpenAI(cfg.openaiAPIKey, opts...)

	case "gemini":
		opts := []adapter.GeminiOption{}
		if model != "" {
			opts = append(opts, adapter.WithEmbeddingModel(model))
		}
		client, err := cfg.newGemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		embedder = client

	default:
		return nil, goerr.New("unknown embedding provider", goerr.V("spec", spec))
	}

	return embedding.New(spec, embedder), nil
}

func (cfg *config) openaiOptions() []adapter.OpenAIOption {
	var opts []adapter.OpenAIOption
	if cfg.openaiBaseURL != "" {
		opts = append(opts, adapter.WithOpenAIBaseURL(cfg.openaiBaseURL))
	}
	return opts
}

// newLLM creates a completion model from a "provider:model" spec
func (cfg *config) newLLM(ctx context.Context, spec string) (adapter.LLM, error) {
	provider, model, err := splitModelSpec(spec)
	if err != nil {
		return nil, err
	}

	switch provider {
	case "openai":
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required", goerr.V("spec", spec))
		}
		opts := cfg.openaiOptions()
		if model != "" {
			opts = append(opts, adapter.WithOpenAIChatModel(model))
		}
		opts = append(opts, adapter.WithOpenAISeed(42))
		return adapter.NewOpenAI(cfg.openaiAPIKey, opts...), nil

	case "ollama":
		opts := []adapter.OllamaOption{adapter.WithOllamaSeed(42)}
		if model != "" {
			opts = append(opts, adapter.WithOllamaModel(model))
		}
		client, err := adapter.NewOllama(cfg.ollamaHost, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create model", goerr.V("spec", spec))
		}
		return client, nil

	case "claude", "anthropic":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required", goerr.V("spec", spec))
		}
		return adapter.NewClaude(cfg.anthropicAPIKey, model), nil

	case "gemini":
		opts := []adapter.GeminiOption{}
		if model != "" {
			opts = append(opts, adapter.WithGenerativeModel(model))
		}
		client, err := cfg.newGemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, goerr.New("unknown model provider", goerr.V("spec", spec))
	}
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context, opts ...adapter.GeminiOption) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	if cfg.geminiModel != "" {
		opts = append([]adapter.GeminiOption{adapter.WithGenerativeModel(cfg.geminiModel)}, opts...)
	}

	client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return client, nil
}

// newEnsemble wires the frontier and specialist estimators over collection
func (cfg *config) newEnsemble(ctx context.Context, coll vectorstore.Collection) (*pricing.Ensemble, error) {
	encoder, err := cfg.newEmbedding(ctx)
	if err != nil {
		return nil, err
	}

	frontierLLM, err := cfg.newLLM(ctx, cfg.frontierModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create frontier model")
	}
	specialistLLM, err := cfg.newLLM(ctx, cfg.specialistModel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create specialist model")
	}

	weights := pricing.DefaultWeights()
	if cfg.weightsFile != "" {
		weights, err = pricing.LoadWeights(cfg.weightsFile)
		if err != nil {
			return nil, err
		}
	}

	opts := []pricing.EnsembleOption{pricing.WithWeights(weights)}
	if cfg.preprocessModel != "" {
		preLLM, err := cfg.newLLM(ctx, cfg.preprocessModel)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create preprocess model")
		}
		opts = append(opts, pricing.WithPreprocessor(pricing.NewLLMPreprocessor(preLLM)))
	}

	return pricing.NewEnsemble(
		pricing.NewSpecialist(specialistLLM),
		pricing.NewFrontier(frontierLLM, retrieval.New(coll, encoder)),
		opts...,
	), nil
}

// newMessenger sends through Pushover when credentials are set and composes
// with Claude when an Anthropic key is set
func (cfg *config) newMessenger(ctx context.Context) *messenger.Messenger {
	var notifier messenger.Notifier = messenger.LogNotifier{}
	if cfg.pushoverUser != "" && cfg.pushoverToken != "" {
		notifier = adapter.NewPushover(cfg.pushoverUser, cfg.pushoverToken)
	} else {
		logging.From(ctx).Warn("pushover credentials not set, notifications are only logged")
	}

	var opts []messenger.Option
	if cfg.anthropicAPIKey != "" {
		opts = append(opts, messenger.WithLLM(adapter.NewClaude(cfg.anthropicAPIKey, cfg.claudeModel)))
	}
	return messenger.New(notifier, opts...)
}

// openMemory opens the opportunity memory at memoryLocation
func (cfg *config) openMemory(ctx context.Context) (*memory.Store, error) {
	store, err := memory.Open(ctx, cfg.memoryLocation)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open memory", goerr.V("location", cfg.memoryLocation))
	}
	return store, nil
}
