package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/anthropic"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/bridge"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/gemini"
	llmhttp "github.com/reviewpipe/reviewpipe/internal/adapter/llm/http"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/ollama"
	"github.com/reviewpipe/reviewpipe/internal/adapter/llm/openai"
	"github.com/reviewpipe/reviewpipe/internal/aggregator"
	contextpkg "github.com/reviewpipe/reviewpipe/internal/context"
	"github.com/reviewpipe/reviewpipe/internal/config"
	"github.com/reviewpipe/reviewpipe/internal/gitrepo"
	"github.com/reviewpipe/reviewpipe/internal/idempotency"
	"github.com/reviewpipe/reviewpipe/internal/intake"
	"github.com/reviewpipe/reviewpipe/internal/llm"
	obsmetrics "github.com/reviewpipe/reviewpipe/internal/observability"
	"github.com/reviewpipe/reviewpipe/internal/prompt"
	"github.com/reviewpipe/reviewpipe/internal/queue"
	"github.com/reviewpipe/reviewpipe/internal/resultstore"
	"github.com/reviewpipe/reviewpipe/internal/sandbox"
	"github.com/reviewpipe/reviewpipe/internal/scm"
	"github.com/reviewpipe/reviewpipe/internal/scm/github"
	"github.com/reviewpipe/reviewpipe/internal/scm/gitlab"
	"github.com/reviewpipe/reviewpipe/internal/tracking"
	"github.com/reviewpipe/reviewpipe/internal/verify"
	"github.com/reviewpipe/reviewpipe/internal/version"
	"github.com/reviewpipe/reviewpipe/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		log.Println(llmhttp.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "reviewpipe",
		Short: "Asynchronous AI code review pipeline",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintln(cmd.OutOrStdout(), version.Value())
			os.Exit(0)
		}
		return nil
	}

	root.AddCommand(workerCommand())
	root.AddCommand(intakeCommand())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return root.ExecuteContext(ctx)
}

func loadConfig() (config.Config, error) {
	return config.Load(config.LoaderOptions{
		ConfigPaths: []string{"."},
		FileName:    "reviewpipe",
		EnvPrefix:   "REVIEWPIPE",
	})
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// workerCommand runs the C10 worker loop: claim requests from the queue
// broker and drive them through the full review pipeline.
func workerCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the review pipeline worker loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			deps, workerCfg, err := buildWorkerDependencies(cfg)
			if err != nil {
				return fmt.Errorf("build worker dependencies: %w", err)
			}

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Printf("metrics server: %v", err)
					}
				}()
				defer srv.Close()
			}

			w := worker.New(workerCfg, deps)
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on, empty to disable")
	return cmd
}

// intakeCommand accepts a single webhook payload from a file or stdin and
// enqueues it, for local smoke tests without standing up an HTTP edge.
func intakeCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Accept a single webhook payload and enqueue it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			gate, broker, err := buildIntakeDependencies(cfg)
			if err != nil {
				return fmt.Errorf("build intake dependencies: %w", err)
			}

			var reader *bufio.Reader
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open payload file: %w", err)
				}
				defer f.Close()
				reader = bufio.NewReader(f)
			} else {
				reader = bufio.NewReader(os.Stdin)
			}

			var payload intake.Payload
			if err := json.NewDecoder(reader).Decode(&payload); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}

			in := intake.New(gate, broker)
			resp, err := in.HandleWebhook(cmd.Context(), payload)
			if err != nil {
				return fmt.Errorf("handle webhook: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON webhook payload, defaults to stdin")
	return cmd
}

// buildIntakeDependencies wires the idempotency gate and queue broker.
// The queue broker (Redis Streams) has no SQLite equivalent, so Redis is
// the only backend for this path regardless of pipeline.Redis.Backend;
// that setting only selects the idempotency gate's own storage when the
// gate is used standalone (see DESIGN.md).
func buildIntakeDependencies(cfg config.Config) (idempotency.Gate, queue.Broker, error) {
	pipeline := cfg.Pipeline
	client := newRedisClient(pipeline.Redis)
	gate := idempotency.NewRedisGate(client, 24*time.Hour)
	broker := queue.NewRedisBroker(client, pipeline.Consumer.Stream)
	return gate, broker, nil
}

func buildWorkerDependencies(cfg config.Config) (worker.Dependencies, worker.Config, error) {
	pipeline := cfg.Pipeline

	workerCfg := worker.DefaultConfig()
	if pipeline.Consumer.Stream != "" {
		workerCfg.Stream = pipeline.Consumer.Stream
	}
	if pipeline.Consumer.Group != "" {
		workerCfg.Group = pipeline.Consumer.Group
	}
	if pipeline.Consumer.Consumer != "" {
		workerCfg.Consumer = pipeline.Consumer.Consumer
	}
	if pipeline.Consumer.Batch > 0 {
		workerCfg.MaxBatch = pipeline.Consumer.Batch
	}
	if blockFor, err := time.ParseDuration(pipeline.Consumer.BlockFor); err == nil && blockFor > 0 {
		workerCfg.BlockFor = blockFor
	}
	if pipeline.Decision.MaxRetries > 0 {
		workerCfg.MaxRetries = pipeline.Decision.MaxRetries
	}
	workerCfg.SandboxEnabled = pipeline.SandboxEnabled
	workerCfg.BotUsername = pipeline.BotUsername
	workerCfg.VerificationEnabled = cfg.Verification.Enabled
	workerCfg.Confidence = cfg.Verification.Confidence
	workerCfg.TrackingEnabled = pipeline.BotUsername != ""

	client := newRedisClient(pipeline.Redis)
	broker := queue.NewRedisBroker(client, workerCfg.Stream)
	store := resultstore.NewRedisStore(client, resultstore.DefaultTTL)

	scmPort, err := buildSCMPort(pipeline)
	if err != nil {
		return worker.Dependencies{}, worker.Config{}, err
	}

	contextOrchestrator := buildContextOrchestrator(pipeline.Context)

	metrics := obsmetrics.NewMetrics(prometheus.DefaultRegisterer)

	var sandboxRunner worker.SandboxRunner
	var sandboxCfg sandbox.Config
	if pipeline.SandboxEnabled {
		runner, err := sandbox.NewRunnerFromEnv()
		if err != nil {
			log.Printf("worker: sandbox disabled: %v", err)
		} else {
			sandboxRunner = runner
			sandboxCfg, err = buildSandboxConfig(pipeline.Docker)
			if err != nil {
				return worker.Dependencies{}, worker.Config{}, fmt.Errorf("sandbox config: %w", err)
			}
		}
	}

	var llmDriver worker.LLMDriver
	if driver, err := buildLLMDriver(cfg, pipeline.Decision); err != nil {
		log.Printf("worker: llm driver unavailable: %v", err)
	} else {
		llmDriver = driver
	}

	var verifierFactory func(repo verify.Repository) verify.Verifier
	if cfg.Verification.Enabled {
		if factory, err := buildVerifierFactory(cfg, pipeline.Decision); err != nil {
			log.Printf("worker: verification disabled: %v", err)
		} else {
			verifierFactory = factory
		}
	}

	var trackingStore tracking.Store
	if workerCfg.TrackingEnabled {
		trackingStore = tracking.NewRedisStore(client, tracking.DefaultTTL)
	}

	deps := worker.Dependencies{
		Broker:           broker,
		SCM:              scmPort,
		Context:          contextOrchestrator,
		Prompt:           prompt.NewComposer(prompt.DefaultConfig()),
		LLM:              llmDriver,
		Sandbox:          sandboxRunner,
		SandboxImage:     sandboxCfg,
		CloneRepo:        buildCloneRepo(pipeline),
		VerifierFactory:  verifierFactory,
		Tracking:         trackingStore,
		Aggregator: aggregator.Config{
			ConfidenceThreshold:      pipeline.Aggregation.Filtering.ConfidenceThreshold,
			DedupSimilarityThreshold: pipeline.Aggregation.Dedup.SimilarityThreshold,
			MaxIssuesPerFile:         pipeline.Aggregation.Filtering.MaxIssuesPerFile,
		},
		Store:   store,
		Metrics: metrics,
		Logger:  log.Default(),
	}
	if deps.Aggregator.MaxIssuesPerFile <= 0 {
		deps.Aggregator = aggregator.DefaultConfig()
	}

	return deps, workerCfg, nil
}

func buildSCMPort(pipeline config.PipelineConfig) (scm.Port, error) {
	switch pipeline.SCMProvider {
	case "gitlab":
		return gitlab.NewAdapter(pipeline.SCMToken, pipeline.GitLabURL)
	default:
		return github.NewAdapter(pipeline.SCMToken), nil
	}
}

// buildCloneRepo returns the worker's per-request checkout primitive, or nil
// when no clone token is configured (verification, the git co-change
// strategy, and the sandbox workspace mount all degrade gracefully without
// one). Each call clones into a fresh temp directory; the returned cleanup
// removes it.
func buildCloneRepo(pipeline config.PipelineConfig) func(ctx context.Context, repositoryID, headSHA string) (string, func(), error) {
	token := pipeline.Clone.Token
	if token == "" {
		token = pipeline.SCMToken
	}
	if token == "" {
		return nil
	}

	timeout, err := time.ParseDuration(pipeline.Clone.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return func(ctx context.Context, repositoryID, headSHA string) (string, func(), error) {
		dir, err := os.MkdirTemp("", "reviewpipe-clone-*")
		if err != nil {
			return "", nil, fmt.Errorf("create clone scratch dir: %w", err)
		}
		cleanup := func() { os.RemoveAll(dir) }

		cloneCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		_, err = gitrepo.Clone(cloneCtx, gitrepo.CloneOptions{
			URL:       cloneURL(pipeline, repositoryID),
			Ref:       headSHA,
			Dir:       dir,
			Depth:     50,
			AuthToken: token,
		})
		if err != nil {
			cleanup()
			return "", nil, err
		}
		return dir, cleanup, nil
	}
}

// cloneURL builds the HTTPS clone URL for repositoryID ("owner/repo") under
// the configured SCM provider.
func cloneURL(pipeline config.PipelineConfig, repositoryID string) string {
	if pipeline.SCMProvider == "gitlab" {
		base := pipeline.GitLabURL
		if base == "" {
			base = "https://gitlab.com"
		}
		return fmt.Sprintf("%s/%s.git", base, repositoryID)
	}
	return fmt.Sprintf("https://github.com/%s.git", repositoryID)
}

// buildVerifierFactory builds the closure the worker calls once per request
// with that request's checked-out Repository, reusing the same LLM provider
// configured for review generation.
func buildVerifierFactory(cfg config.Config, decision config.DecisionConfig) (func(repo verify.Repository) verify.Verifier, error) {
	providerName := decision.Provider
	if providerName == "" {
		providerName = "anthropic"
	}
	provider, err := llm.ParseProvider(providerName)
	if err != nil {
		return nil, err
	}

	providerCfg := cfg.Providers[providerName]
	model := decision.Model
	if model == "" {
		model = providerCfg.Model
	}

	client, err := buildProviderClient(provider, model, providerCfg, cfg.HTTP)
	if err != nil {
		return nil, err
	}

	llmClient := verify.NewDriverLLMClient(client, string(provider), model)
	costTracker := verify.NewCostTracker(cfg.Verification.CostCeiling)
	agentCfg := verify.DefaultAgentConfig()
	agentCfg.Confidence = cfg.Verification.Confidence
	if cfg.Verification.Depth != "" {
		agentCfg.Depth = cfg.Verification.Depth
	}

	return func(repo verify.Repository) verify.Verifier {
		return verify.NewAgentVerifier(llmClient, repo, costTracker, agentCfg)
	}, nil
}

func buildContextOrchestrator(cfg config.ContextConfig) *contextpkg.Orchestrator {
	orchestratorCfg := contextpkg.DefaultConfig()
	orchestratorCfg.Enabled = cfg.Enabled
	if cfg.MaxDiffLines > 0 {
		orchestratorCfg.MaxDiffLines = cfg.MaxDiffLines
	}

	strategies := []contextpkg.Strategy{
		contextpkg.NewDiffFileReferenceExtractor(1),
	}
	return contextpkg.NewOrchestrator(orchestratorCfg, strategies...)
}

func buildSandboxConfig(cfg config.DockerConfig) (sandbox.Config, error) {
	image := cfg.Image
	if image == "" {
		image = "reviewpipe/sandbox:latest"
	}
	sandboxCfg, err := sandbox.IsolatedDefaults(image)
	if err != nil {
		return sandbox.Config{}, err
	}
	if cfg.MemoryBytes > 0 {
		sandboxCfg.MemoryLimitBytes = cfg.MemoryBytes
	}
	if cfg.CPUNanoCores > 0 {
		sandboxCfg.CPUNanoCores = cfg.CPUNanoCores
	}
	if timeout, err := time.ParseDuration(cfg.Timeout); err == nil && timeout > 0 {
		sandboxCfg.Timeout = timeout
	}
	sandboxCfg.NetworkDisabled = cfg.NetworkDisabled
	return sandbox.Validate(sandboxCfg)
}

func buildLLMDriver(cfg config.Config, decision config.DecisionConfig) (*llm.Driver, error) {
	providerName := decision.Provider
	if providerName == "" {
		providerName = "anthropic"
	}
	provider, err := llm.ParseProvider(providerName)
	if err != nil {
		return nil, err
	}

	providerCfg := cfg.Providers[providerName]
	model := decision.Model
	if model == "" {
		model = providerCfg.Model
	}

	client, err := buildProviderClient(provider, model, providerCfg, cfg.HTTP)
	if err != nil {
		return nil, err
	}

	return llm.NewDriver(llm.Config{Provider: provider, Model: model}, client), nil
}

func buildProviderClient(provider llm.Provider, model string, providerCfg config.ProviderConfig, httpCfg config.HTTPConfig) (llm.ProviderClient, error) {
	switch provider {
	case llm.ProviderOpenAI:
		if providerCfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai requires an api key")
		}
		return bridge.OpenAI{Client: openai.NewHTTPClient(providerCfg.APIKey, model, providerCfg, httpCfg)}, nil
	case llm.ProviderAnthropic:
		if providerCfg.APIKey == "" {
			return nil, fmt.Errorf("llm: anthropic requires an api key")
		}
		return bridge.Anthropic{Client: anthropic.NewHTTPClient(providerCfg.APIKey, model)}, nil
	case llm.ProviderGemini:
		if providerCfg.APIKey == "" {
			return nil, fmt.Errorf("llm: gemini requires an api key")
		}
		return bridge.Gemini{Client: gemini.NewHTTPClient(providerCfg.APIKey, model, providerCfg, httpCfg)}, nil
	case llm.ProviderOllama:
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return bridge.Ollama{Client: ollama.NewHTTPClient(host, model, providerCfg, httpCfg)}, nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", provider)
	}
}

// Compile-time interface compliance checks.
var _ worker.LLMDriver = (*llm.Driver)(nil)
var _ worker.SandboxRunner = (*sandbox.Runner)(nil)
var _ scm.Port = (*github.Adapter)(nil)
var _ scm.Port = (*gitlab.Adapter)(nil)
