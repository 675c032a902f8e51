package config

// ConsumerConfig configures the worker loop's queue consumer (C5/C10):
// stream, group, consumer name, batch size, and block duration.
type ConsumerConfig struct {
	Stream   string `yaml:"stream"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
	Batch    int    `yaml:"batch"`
	BlockFor string `yaml:"blockFor"`
}

// CloneConfig configures the repository checkout the sandbox runner (C6)
// mounts into its container.
type CloneConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
	Token       string `yaml:"token"`
}

// DockerConfig configures the sandbox runner's (C6) container resource
// caps.
type DockerConfig struct {
	Socket          string `yaml:"socket"`
	Image           string `yaml:"image"`
	MemoryBytes     int64  `yaml:"memoryBytes"`
	CPUNanoCores    int64  `yaml:"cpuNanoCores"`
	Timeout         string `yaml:"timeout"`
	NetworkDisabled bool   `yaml:"networkDisabled"`
}

// DedupConfig configures the aggregator's (C8) dedup similarity gate.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
}

// FilteringConfig configures the aggregator's (C8) confidence filter and
// per-file cap.
type FilteringConfig struct {
	ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
	MaxIssuesPerFile    int     `yaml:"maxIssuesPerFile"`
}

// AggregationConfig groups the finding aggregator's (C8) knobs.
type AggregationConfig struct {
	Dedup     DedupConfig     `yaml:"dedup"`
	Filtering FilteringConfig `yaml:"filtering"`
}

// DecisionConfig selects the LLM driver's (C7) provider, model, and retry
// ceiling.
type DecisionConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	MaxRetries int    `yaml:"maxRetries"`
}

// ContextConfig configures the context retriever (C2): the enable switch,
// the large-diff cutoff, which strategies run, a gradual rollout
// percentage, how far expanded files are allowed to grow, and the
// repository-policy documents to load.
type ContextConfig struct {
	Enabled             bool     `yaml:"enabled"`
	MaxDiffLines        int      `yaml:"maxDiffLines"`
	Strategies          []string `yaml:"strategies"`
	RolloutPercent      int      `yaml:"rolloutPercent"`
	DiffExpansionLines  int      `yaml:"diffExpansionLines"`
	RepositoryPolicies  []string `yaml:"repositoryPolicies"`
}

// RedisConfig points the idempotency gate (C4), queue broker (C5), and
// result store (C12) at a shared Redis instance. Backend selects between
// "redis" (the documented production backend) and "sqlite" (the local/CI
// fallback every one of those three components also supports).
type RedisConfig struct {
	Backend  string `yaml:"backend"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PipelineConfig groups the asynchronous review pipeline's configuration
// surface.
type PipelineConfig struct {
	Consumer    ConsumerConfig    `yaml:"consumer"`
	Clone       CloneConfig       `yaml:"clone"`
	Docker      DockerConfig      `yaml:"docker"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Decision    DecisionConfig    `yaml:"decision"`
	Context     ContextConfig     `yaml:"context"`
	Redis       RedisConfig       `yaml:"redis"`
	SCMProvider string            `yaml:"scmProvider"`
	SCMToken    string            `yaml:"scmToken"`
	GitLabURL   string            `yaml:"gitlabUrl"`
	BotUsername string            `yaml:"botUsername"`
	SandboxEnabled bool           `yaml:"sandboxEnabled"`
}

func choosePipeline(base, overlay PipelineConfig) PipelineConfig {
	result := base
	if overlay.Consumer != (ConsumerConfig{}) {
		result.Consumer = overlay.Consumer
	}
	if overlay.Clone != (CloneConfig{}) {
		result.Clone = overlay.Clone
	}
	if overlay.Docker != (DockerConfig{}) {
		result.Docker = overlay.Docker
	}
	if overlay.Decision != (DecisionConfig{}) {
		result.Decision = overlay.Decision
	}
	if overlay.Aggregation.Dedup.SimilarityThreshold != 0 {
		result.Aggregation.Dedup = overlay.Aggregation.Dedup
	}
	if overlay.Aggregation.Filtering.ConfidenceThreshold != 0 || overlay.Aggregation.Filtering.MaxIssuesPerFile != 0 {
		result.Aggregation.Filtering = overlay.Aggregation.Filtering
	}
	if overlay.Context.Enabled || overlay.Context.MaxDiffLines != 0 || len(overlay.Context.Strategies) > 0 {
		result.Context = overlay.Context
	}
	if overlay.Redis != (RedisConfig{}) {
		result.Redis = overlay.Redis
	}
	if overlay.SCMProvider != "" {
		result.SCMProvider = overlay.SCMProvider
	}
	if overlay.SCMToken != "" {
		result.SCMToken = overlay.SCMToken
	}
	if overlay.GitLabURL != "" {
		result.GitLabURL = overlay.GitLabURL
	}
	if overlay.BotUsername != "" {
		result.BotUsername = overlay.BotUsername
	}
	if overlay.SandboxEnabled {
		result.SandboxEnabled = overlay.SandboxEnabled
	}
	return result
}
