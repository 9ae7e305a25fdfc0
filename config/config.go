package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all orchestrator configuration.
type Config struct {
	App           AppConfig
	Orchestrator  OrchestratorConfig
	Concurrency   ConcurrencyConfig
	Pool          PoolConfig
	CLI           CLIConfig
	Observability ObservabilityConfig
	Redis         RedisConfig
}

// AppConfig contains application-level configuration.
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// OrchestratorConfig controls the pipeline coordinator itself.
type OrchestratorConfig struct {
	Workspace          string        `mapstructure:"workspace"`
	IntroDelay         time.Duration `mapstructure:"intro_delay"`
	MaxSubtasks        int           `mapstructure:"max_subtasks"`
	DependencyPrefix   int           `mapstructure:"dependency_context_prefix_chars"`
	SynthesisPrefix    int           `mapstructure:"synthesis_result_prefix_chars"`
	PlannerModel       string        `mapstructure:"planner_model"`
	FallbackRoleCount  int           `mapstructure:"fallback_role_count"`
	DedupWindow        time.Duration `mapstructure:"dedup_window"`
	ShouldDecomposeMin int           `mapstructure:"should_decompose_min_words"`
}

// ConcurrencyConfig holds per-pressure concurrency limits. They are loaded
// and validated, but the admission controller does not read them: it uses
// its fixed pressure→limit table (4/3/2/1).
type ConcurrencyConfig struct {
	NormalLimit   int `mapstructure:"normal_limit"`
	ElevatedLimit int `mapstructure:"elevated_limit"`
	HighLimit     int `mapstructure:"high_limit"`
	CriticalLimit int `mapstructure:"critical_limit"`
}

// PoolConfig controls the sub-agent pool and its cleanup/monitor collaborators.
type PoolConfig struct {
	MaxPoolSize            int           `mapstructure:"max_pool_size"`
	PressureReleaseCeiling string        `mapstructure:"pressure_release_ceiling"`
	SnapshotInterval       time.Duration `mapstructure:"snapshot_interval"`
	SnapshotRingSize       int           `mapstructure:"snapshot_ring_size"`
	TransitionLogCap       int           `mapstructure:"transition_log_cap"`
	TransitionLogEvictPct  float64       `mapstructure:"transition_log_evict_pct"`
	AlertDedupWindow       time.Duration `mapstructure:"alert_dedup_window"`
	IdleWarningThreshold   int           `mapstructure:"idle_warning_threshold"`
	IdleCriticalSeconds    int           `mapstructure:"idle_critical_seconds"`
	CleanupWarningCount    int           `mapstructure:"cleanup_warning_count"`
}

// CLIConfig selects the external CLI binary invoked per model.
type CLIConfig struct {
	OpusBinary   string            `mapstructure:"opus_binary"`
	SonnetBinary string            `mapstructure:"sonnet_binary"`
	HaikuBinary  string            `mapstructure:"haiku_binary"`
	Env          map[string]string `mapstructure:"env"`
}

// ObservabilityConfig contains observability configuration.
type ObservabilityConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type TracingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RedisConfig optionally backs the durable TaskQueueItem mirror.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "swarmctl")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.log_level", "info")

	// Orchestrator
	v.SetDefault("orchestrator.workspace", "")
	v.SetDefault("orchestrator.intro_delay", "1s")
	v.SetDefault("orchestrator.max_subtasks", 6)
	v.SetDefault("orchestrator.dependency_context_prefix_chars", 500)
	v.SetDefault("orchestrator.synthesis_result_prefix_chars", 800)
	v.SetDefault("orchestrator.planner_model", "haiku")
	v.SetDefault("orchestrator.fallback_role_count", 2)
	v.SetDefault("orchestrator.dedup_window", "5m")
	v.SetDefault("orchestrator.should_decompose_min_words", 8)

	// Concurrency
	v.SetDefault("concurrency.normal_limit", 4)
	v.SetDefault("concurrency.elevated_limit", 3)
	v.SetDefault("concurrency.high_limit", 2)
	v.SetDefault("concurrency.critical_limit", 1)

	// Pool
	v.SetDefault("pool.max_pool_size", 8)
	v.SetDefault("pool.pressure_release_ceiling", "elevated")
	v.SetDefault("pool.snapshot_interval", "10s")
	v.SetDefault("pool.snapshot_ring_size", 360)
	v.SetDefault("pool.transition_log_cap", 500)
	v.SetDefault("pool.transition_log_evict_pct", 0.2)
	v.SetDefault("pool.alert_dedup_window", "30s")
	v.SetDefault("pool.idle_warning_threshold", 3)
	v.SetDefault("pool.idle_critical_seconds", 60)
	v.SetDefault("pool.cleanup_warning_count", 4)

	// CLI
	v.SetDefault("cli.opus_binary", "claude")
	v.SetDefault("cli.sonnet_binary", "claude")
	v.SetDefault("cli.haiku_binary", "claude")

	// Observability
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.service_name", "swarmctl")
	v.SetDefault("observability.tracing.sampling_ratio", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9090)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output", "stdout")

	// Redis (optional durable queue mirror)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.port", "APP_PORT")
	_ = v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	_ = v.BindEnv("orchestrator.workspace", "SWARMCTL_WORKSPACE")
	_ = v.BindEnv("orchestrator.intro_delay", "SWARMCTL_INTRO_DELAY")
	_ = v.BindEnv("orchestrator.max_subtasks", "SWARMCTL_MAX_SUBTASKS")
	_ = v.BindEnv("orchestrator.planner_model", "SWARMCTL_PLANNER_MODEL")
	_ = v.BindEnv("orchestrator.dedup_window", "SWARMCTL_DEDUP_WINDOW")

	_ = v.BindEnv("concurrency.normal_limit", "SWARMCTL_CONCURRENCY_NORMAL")
	_ = v.BindEnv("concurrency.elevated_limit", "SWARMCTL_CONCURRENCY_ELEVATED")
	_ = v.BindEnv("concurrency.high_limit", "SWARMCTL_CONCURRENCY_HIGH")
	_ = v.BindEnv("concurrency.critical_limit", "SWARMCTL_CONCURRENCY_CRITICAL")

	_ = v.BindEnv("pool.max_pool_size", "SWARMCTL_POOL_MAX_SIZE")
	_ = v.BindEnv("pool.snapshot_interval", "SWARMCTL_MONITOR_SNAPSHOT_INTERVAL")

	_ = v.BindEnv("cli.opus_binary", "SWARMCTL_CLI_OPUS_BINARY")
	_ = v.BindEnv("cli.sonnet_binary", "SWARMCTL_CLI_SONNET_BINARY")
	_ = v.BindEnv("cli.haiku_binary", "SWARMCTL_CLI_HAIKU_BINARY")

	_ = v.BindEnv("observability.tracing.enabled", "OTEL_ENABLED")
	_ = v.BindEnv("observability.tracing.service_name", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("observability.tracing.sampling_ratio", "OTEL_SAMPLING_RATIO")

	_ = v.BindEnv("observability.metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("observability.metrics.port", "METRICS_PORT")
	_ = v.BindEnv("observability.metrics.path", "METRICS_PATH")

	_ = v.BindEnv("observability.logging.format", "LOG_FORMAT")
	_ = v.BindEnv("observability.logging.output", "LOG_OUTPUT")

	_ = v.BindEnv("redis.enabled", "SWARMCTL_REDIS_ENABLED")
	_ = v.BindEnv("redis.address", "SWARMCTL_REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "SWARMCTL_REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "SWARMCTL_REDIS_DB")
}

func validate(cfg *Config) error {
	if cfg.App.Port < 1 || cfg.App.Port > 65535 {
		return fmt.Errorf("invalid app.port: must be between 1 and 65535")
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[cfg.App.Env] {
		return fmt.Errorf("invalid app.env: must be development, staging, or production")
	}

	if cfg.Orchestrator.MaxSubtasks < 1 {
		return fmt.Errorf("invalid orchestrator.max_subtasks: must be >= 1")
	}

	validModels := map[string]bool{"opus": true, "sonnet": true, "haiku": true}
	if !validModels[cfg.Orchestrator.PlannerModel] {
		return fmt.Errorf("invalid orchestrator.planner_model: must be opus, sonnet, or haiku")
	}

	for _, limit := range []int{
		cfg.Concurrency.NormalLimit,
		cfg.Concurrency.ElevatedLimit,
		cfg.Concurrency.HighLimit,
		cfg.Concurrency.CriticalLimit,
	} {
		if limit < 1 {
			return fmt.Errorf("invalid concurrency limit: must be >= 1")
		}
	}
	if !(cfg.Concurrency.NormalLimit >= cfg.Concurrency.ElevatedLimit &&
		cfg.Concurrency.ElevatedLimit >= cfg.Concurrency.HighLimit &&
		cfg.Concurrency.HighLimit >= cfg.Concurrency.CriticalLimit) {
		return fmt.Errorf("invalid concurrency limits: must be monotonically non-increasing as pressure rises")
	}

	if cfg.Pool.MaxPoolSize < 0 {
		return fmt.Errorf("invalid pool.max_pool_size: must be >= 0")
	}
	if cfg.Pool.TransitionLogEvictPct <= 0 || cfg.Pool.TransitionLogEvictPct >= 1 {
		return fmt.Errorf("invalid pool.transition_log_evict_pct: must be in (0,1)")
	}

	if cfg.Observability.Tracing.SamplingRatio < 0 || cfg.Observability.Tracing.SamplingRatio > 1.0 {
		return fmt.Errorf("invalid observability.tracing.sampling_ratio: must be between 0.0 and 1.0")
	}

	return nil
}

// IsProduction returns true if running in production environment.
func (c *AppConfig) IsProduction() bool { return c.Env == "production" }

// IsDevelopment returns true if running in development environment.
func (c *AppConfig) IsDevelopment() bool { return c.Env == "development" }

// IsStaging returns true if running in staging environment.
func (c *AppConfig) IsStaging() bool { return c.Env == "staging" }
