// Package main provides runtime execution for research runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/hekmatica/internal/config"
	"github.com/vinayprograms/hekmatica/internal/reasoning"
	"github.com/vinayprograms/hekmatica/internal/retrieval"
	"github.com/vinayprograms/hekmatica/internal/session"
	"github.com/vinayprograms/hekmatica/internal/telemetry"
	"github.com/vinayprograms/hekmatica/internal/workflow"
)

var errNoModel = errors.New("LLM model not configured (run 'hekmatica setup')")

// runtime handles the execution phase of a run.
type runtime struct {
	cfg     *config.Config
	clients *config.Clients
	creds   *credentials.Credentials
	logger  *logging.Logger

	// Components
	provider llm.Provider
	reasoner *reasoning.Client
	search   retrieval.WebSearcher
	price    retrieval.PriceLooker
	asker    workflow.Asker
	progress workflow.Sink
	exec     *workflow.Executor
	sessions *session.FileManager
	recorder *sessionRecorder
	shutdown telemetry.Shutdown

	// Cleanup
	closers []func()
}

// newRuntime creates a runtime from loaded settings.
func newRuntime(s *settings, creds *credentials.Credentials) *runtime {
	return &runtime{
		cfg:     s.cfg,
		clients: s.clients,
		creds:   creds,
		logger:  logging.New().WithComponent("cli"),
	}
}

// setup wires every component. asker and progress may be nil.
func (rt *runtime) setup(ctx context.Context, asker workflow.Asker, progress workflow.Sink) error {
	rt.asker = asker
	rt.progress = progress

	if err := rt.createProviders(); err != nil {
		return err
	}
	if err := rt.createRetrieval(); err != nil {
		return err
	}
	if err := rt.setupTelemetry(ctx); err != nil {
		return err
	}
	if err := rt.setupSession(); err != nil {
		return err
	}
	rt.createExecutor()
	return nil
}

// createProviders creates the default provider and any per-operation overrides.
func (rt *runtime) createProviders() error {
	var err error
	rt.provider, err = newProvider(rt.cfg.LLM, rt.creds)
	if err != nil {
		return err
	}
	rt.reasoner = reasoning.NewClient(rt.provider)

	// One provider per profile, shared by every operation mapped to it.
	byProfile := map[string]llm.Provider{}
	for _, op := range rt.clients.Ops() {
		profile := rt.clients.Profile(op)
		p, ok := byProfile[profile]
		if !ok {
			p, err = newProvider(rt.cfg.GetProfile(profile), rt.creds)
			if err != nil {
				return fmt.Errorf("profile %s: %w", profile, err)
			}
			byProfile[profile] = p
		}
		rt.reasoner.SetOperationProvider(reasoning.Operation(op), p)
		rt.logger.Debug("operation routed to profile", map[string]interface{}{
			"operation": op,
			"profile":   profile,
		})
	}
	return nil
}

// newProvider creates an LLM provider from cfg.
func newProvider(cfg config.LLMConfig, creds *credentials.Credentials) (llm.Provider, error) {
	if cfg.Model == "" {
		return nil, errNoModel
	}
	provider := cfg.Provider
	if provider == "" {
		provider = llm.InferProviderFromModel(cfg.Model)
	}

	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:    provider,
		Model:       cfg.Model,
		APIKey:      apiKeyFor(cfg, provider, creds),
		MaxTokens:   cfg.MaxTokens,
		BaseURL:     cfg.BaseURL,
		Thinking:    llm.ThinkingConfig{Level: llm.ThinkingLevel(cfg.Thinking)},
		RetryConfig: parseRetryConfig(cfg.MaxRetries, cfg.RetryBackoff),
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return p, nil
}

// apiKeyFor resolves a key: explicit api_key_env, then credentials.toml,
// then the provider's conventional environment variable.
func apiKeyFor(cfg config.LLMConfig, provider string, creds *credentials.Credentials) string {
	if cfg.APIKeyEnv != "" {
		if v := os.Getenv(cfg.APIKeyEnv); v != "" {
			return v
		}
	}
	if creds != nil {
		if v := creds.GetAPIKey(provider); v != "" {
			return v
		}
	}
	if env := config.DefaultAPIKeyEnv(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// createRetrieval creates the web search and price lookup tools.
func (rt *runtime) createRetrieval() error {
	search, err := retrieval.NewWebSearcher(retrieval.SearchConfig{
		Backend:           rt.cfg.Search.Backend,
		APIKey:            rt.cfg.GetSearchAPIKey(),
		Depth:             rt.cfg.Search.Depth,
		RequestsPerSecond: rt.cfg.Search.RequestsPerSecond,
		Timeout:           rt.cfg.SearchTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating web search: %w", err)
	}
	rt.search = search

	price, err := retrieval.NewCoinGecko(retrieval.PriceConfig{
		Endpoint:          rt.cfg.Price.Endpoint,
		Currency:          rt.cfg.Price.Currency,
		Expr:              rt.cfg.Price.Expr,
		RequestsPerSecond: rt.cfg.Price.RequestsPerSecond,
		Timeout:           rt.cfg.PriceTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating price lookup: %w", err)
	}
	rt.price = price
	return nil
}

// setupTelemetry installs the tracer provider.
func (rt *runtime) setupTelemetry(ctx context.Context) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:  rt.cfg.Telemetry.Enabled,
		Protocol: rt.cfg.Telemetry.Protocol,
		Endpoint: rt.cfg.Telemetry.Endpoint,
		Insecure: rt.cfg.Telemetry.Insecure,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	rt.shutdown = shutdown
	rt.closers = append(rt.closers, func() {
		if err := shutdown(context.Background()); err != nil {
			rt.logger.Warn("telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	})
	return nil
}

// setupSession prepares transcript recording when enabled.
func (rt *runtime) setupSession() error {
	if !rt.cfg.Storage.RecordSessions {
		return nil
	}
	mgr, err := session.NewFileManager(rt.cfg.SessionsDir())
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	rt.sessions = mgr
	rt.recorder = newSessionRecorder(mgr)
	return nil
}

// createExecutor creates the workflow executor and attaches asker and sinks.
func (rt *runtime) createExecutor() {
	rt.exec = workflow.New(rt.reasoner, rt.search, rt.price, workflow.Options{
		MaxAttempts:                rt.cfg.Research.MaxAttempts,
		TopK:                       rt.cfg.Research.TopK,
		SearchMaxResults:           rt.cfg.Research.SearchMaxResults,
		AdditionalSearchMaxResults: rt.cfg.Research.AdditionalSearchMaxResults,
	})

	sinks := workflow.MultiSink{}
	if rt.progress != nil {
		sinks = append(sinks, rt.progress)
	}
	asker := rt.asker
	if rt.recorder != nil {
		sinks = append(sinks, rt.recorder)
		if asker != nil {
			asker = &recordingAsker{inner: asker, recorder: rt.recorder}
		}
	}
	rt.exec.SetSink(sinks)
	if asker != nil {
		rt.exec.SetAsker(asker)
	}
}

// run executes one question and finalizes the transcript.
func (rt *runtime) run(ctx context.Context, req workflow.Request) (*workflow.Result, error) {
	res, err := rt.exec.Run(ctx, req)
	if rt.recorder != nil {
		rt.recorder.finish(res, err)
	}
	return res, err
}

// sessionPath returns where the last run was recorded, or "".
func (rt *runtime) sessionPath() string {
	if rt.recorder == nil || rt.recorder.id() == "" {
		return ""
	}
	return rt.sessions.Path(rt.recorder.id())
}

// cleanup releases resources in reverse order.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// writeResult prints the formatted answer.
func writeResult(w io.Writer, res *workflow.Result) {
	fmt.Fprintln(w, res.Output)
}
