package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the concierge engine.
type Config struct {
	Port          int
	Version       string
	Telemetry     TelemetryConfig
	Store         StoreConfig
	LLM           LLMConfig
	Collaborators CollaboratorsConfig
	Engine        EngineConfig
	Rules         RulesConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// StoreConfig selects the refinement store backend.
type StoreConfig struct {
	Backend       string // memory | postgres | redis
	URL           string
	TTL           time.Duration
	SweepInterval time.Duration
}

type LLMConfig struct {
	// Providers is the preference order; unknown names are ignored.
	Providers      []string
	OpenAIKey      string
	OpenAIModel    string
	AnthropicKey   string
	AnthropicModel string
	GeminiKey      string
	GeminiModel    string
	ConfigTTL      time.Duration
	Timeout        time.Duration
}

// CollaboratorsConfig holds base URLs of the external services. An empty URL
// leaves that collaborator unconfigured.
type CollaboratorsConfig struct {
	IntentURL         string
	DiscoveryURL      string
	WeatherURL        string
	OccasionsURL      string
	SearchURL         string
	OrchestrationURL  string
	StandingIntentURL string
	OrdersURL         string
	IntentTimeout     time.Duration
	DiscoveryTimeout  time.Duration
	AuxTimeout        time.Duration
	MapsAPIKey        string
	// SigningSecret, when set, HMAC-signs every collaborator request body.
	SigningSecret string
}

type EngineConfig struct {
	MaxIterations int
	DefaultLimit  int
}

type RulesConfig struct {
	File string
}

// Load reads configuration from CONCIERGE_* environment variables and, when
// path is non-empty, a YAML file. Environment wins over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONCIERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Standard OpenTelemetry variables are honoured as well.
	_ = v.BindEnv("telemetry.enabled", "CONCIERGE_TELEMETRY_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.otlp_endpoint", "CONCIERGE_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.service_name", "CONCIERGE_TELEMETRY_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("llm.openai_key", "CONCIERGE_LLM_OPENAI_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.anthropic_key", "CONCIERGE_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.gemini_key", "CONCIERGE_LLM_GEMINI_KEY", "GEMINI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:    v.GetInt("port"),
		Version: v.GetString("version"),
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			ServiceName:  v.GetString("telemetry.service_name"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(v.GetString("store.backend")),
			URL:           v.GetString("store.url"),
			TTL:           v.GetDuration("store.ttl"),
			SweepInterval: v.GetDuration("store.sweep_interval"),
		},
		LLM: LLMConfig{
			Providers:      splitList(v.GetStringSlice("llm.providers")),
			OpenAIKey:      v.GetString("llm.openai_key"),
			OpenAIModel:    v.GetString("llm.openai_model"),
			AnthropicKey:   v.GetString("llm.anthropic_key"),
			AnthropicModel: v.GetString("llm.anthropic_model"),
			GeminiKey:      v.GetString("llm.gemini_key"),
			GeminiModel:    v.GetString("llm.gemini_model"),
			ConfigTTL:      v.GetDuration("llm.config_ttl"),
			Timeout:        v.GetDuration("llm.timeout"),
		},
		Collaborators: CollaboratorsConfig{
			IntentURL:         v.GetString("collaborators.intent_url"),
			DiscoveryURL:      v.GetString("collaborators.discovery_url"),
			WeatherURL:        v.GetString("collaborators.weather_url"),
			OccasionsURL:      v.GetString("collaborators.occasions_url"),
			SearchURL:         v.GetString("collaborators.search_url"),
			OrchestrationURL:  v.GetString("collaborators.orchestration_url"),
			StandingIntentURL: v.GetString("collaborators.standing_intent_url"),
			OrdersURL:         v.GetString("collaborators.orders_url"),
			IntentTimeout:     v.GetDuration("collaborators.intent_timeout"),
			DiscoveryTimeout:  v.GetDuration("collaborators.discovery_timeout"),
			AuxTimeout:        v.GetDuration("collaborators.aux_timeout"),
			MapsAPIKey:        v.GetString("collaborators.maps_api_key"),
			SigningSecret:     v.GetString("collaborators.signing_secret"),
		},
		Engine: EngineConfig{
			MaxIterations: v.GetInt("engine.max_iterations"),
			DefaultLimit:  v.GetInt("engine.default_limit"),
		},
		Rules: RulesConfig{
			File: v.GetString("rules.file"),
		},
	}
	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("version", "0.1.0")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "concierge")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.url", "")
	v.SetDefault("store.ttl", 7*24*time.Hour)
	v.SetDefault("store.sweep_interval", time.Hour)
	v.SetDefault("llm.providers", []string{"openai", "anthropic", "gemini"})
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.anthropic_key", "")
	v.SetDefault("llm.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.gemini_key", "")
	v.SetDefault("llm.gemini_model", "gemini-1.5-flash")
	v.SetDefault("llm.config_ttl", 60*time.Second)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("collaborators.intent_url", "")
	v.SetDefault("collaborators.discovery_url", "")
	v.SetDefault("collaborators.weather_url", "")
	v.SetDefault("collaborators.occasions_url", "")
	v.SetDefault("collaborators.search_url", "")
	v.SetDefault("collaborators.orchestration_url", "")
	v.SetDefault("collaborators.standing_intent_url", "")
	v.SetDefault("collaborators.orders_url", "")
	v.SetDefault("collaborators.intent_timeout", 30*time.Second)
	v.SetDefault("collaborators.discovery_timeout", 30*time.Second)
	v.SetDefault("collaborators.aux_timeout", 15*time.Second)
	v.SetDefault("collaborators.maps_api_key", "")
	v.SetDefault("collaborators.signing_secret", "")
	v.SetDefault("engine.max_iterations", 5)
	v.SetDefault("engine.default_limit", 10)
	v.SetDefault("rules.file", "")
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres", "redis":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Engine.MaxIterations < 1 {
		return fmt.Errorf("engine.max_iterations must be positive, got %d", c.Engine.MaxIterations)
	}
	if c.Engine.DefaultLimit < 1 {
		c.Engine.DefaultLimit = 10
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, strings.ToLower(p))
			}
		}
	}
	return out
}
