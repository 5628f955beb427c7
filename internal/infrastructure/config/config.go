package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/flowcomply/compliance-engine/internal/domain/dwqar"
	"github.com/flowcomply/compliance-engine/internal/domain/scoring"
)

const (
	envPrefix         = "FLOWCOMPLY_"
	defaultConfigFile = "configs/config.yaml"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production test"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   string `koanf:"log_format" validate:"oneof=json console"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Engine    EngineConfig    `koanf:"engine"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Security  SecurityConfig  `koanf:"security"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	ReplicaURL      string        `koanf:"replica_url"`
	MaxConns        int32         `koanf:"max_conns" validate:"min=1"`
	MinConns        int32         `koanf:"min_conns" validate:"min=0,ltefield=MaxConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// RedisConfig is optional. An empty URL selects the in-process lock and
// disables the score cache.
type RedisConfig struct {
	URL         string        `koanf:"url"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db" validate:"min=0"`
	PoolSize    int           `koanf:"pool_size" validate:"min=1"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"service_name"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	Insecure     bool    `koanf:"insecure"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

type EngineConfig struct {
	PageSize            int           `koanf:"page_size" validate:"min=1,max=100000"`
	LockTTL             time.Duration `koanf:"lock_ttl" validate:"min=1s"`
	SamplesPerPeriod    int           `koanf:"samples_per_period" validate:"min=1"`
	MinCompleteness     float64       `koanf:"min_completeness" validate:"min=0,max=100"`
	DeadlineWarningDays int           `koanf:"deadline_warning_days" validate:"min=0"`
}

type ScoringConfig struct {
	Thresholds            map[string]float64 `koanf:"thresholds" validate:"dive,min=0,max=100"`
	RequiredDocumentTypes []string           `koanf:"required_document_types"`
	ReviewCurrentWithin   time.Duration      `koanf:"review_current_within"`
	ReviewStaleWithin     time.Duration      `koanf:"review_stale_within" validate:"gtefield=ReviewCurrentWithin"`
	RecentUploadWindow    time.Duration      `koanf:"recent_upload_window"`
	RiskAssessmentMaxAge  time.Duration      `koanf:"risk_assessment_max_age"`
	InspectionWindow      time.Duration      `koanf:"inspection_window"`
	IncidentWindow        time.Duration      `koanf:"incident_window"`
	IncidentPenalty       float64            `koanf:"incident_penalty" validate:"min=0"`
	OverduePenalty        float64            `koanf:"overdue_penalty" validate:"min=0"`
	ExpectedAnnual        int                `koanf:"expected_annual" validate:"min=0"`
	ExpectedQuarterly     int                `koanf:"expected_quarterly" validate:"min=0"`
	ExpectedMonthly       int                `koanf:"expected_monthly" validate:"min=0"`
	CacheTTL              time.Duration      `koanf:"cache_ttl"`
}

type SchedulerConfig struct {
	Interval    time.Duration `koanf:"interval" validate:"min=1m"`
	Concurrency int           `koanf:"concurrency" validate:"min=1,max=64"`
	// Period is "current" or an explicit period token.
	Period     string `koanf:"period"`
	RunOnStart bool   `koanf:"run_on_start"`
	Score      bool   `koanf:"score"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second" validate:"min=1"`
	BurstSize         int `koanf:"burst_size" validate:"min=1"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	policy := scoring.DefaultScorePolicy()
	thresholds := make(map[string]float64, len(policy.Thresholds))
	for k, v := range policy.Thresholds {
		thresholds[string(k)] = v
	}

	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			MigrationsPath:  "file://migrations",
		},
		Redis: RedisConfig{
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "flowcomply-compliance-engine",
			OTLPEndpoint: "localhost:4317",
			Insecure:     true,
			SamplingRate: 1.0,
		},
		Engine: EngineConfig{
			PageSize:            1000,
			LockTTL:             5 * time.Minute,
			SamplesPerPeriod:    dwqar.DefaultSamplesPerPeriod,
			MinCompleteness:     90,
			DeadlineWarningDays: 30,
		},
		Scoring: ScoringConfig{
			Thresholds:            thresholds,
			RequiredDocumentTypes: policy.RequiredDocumentTypes,
			ReviewCurrentWithin:   policy.ReviewCurrentWithin,
			ReviewStaleWithin:     policy.ReviewStaleWithin,
			RecentUploadWindow:    policy.RecentUploadWindow,
			RiskAssessmentMaxAge:  policy.RiskAssessmentMaxAge,
			InspectionWindow:      policy.InspectionWindow,
			IncidentWindow:        policy.IncidentWindow,
			IncidentPenalty:       policy.IncidentPenalty,
			OverduePenalty:        policy.OverduePenalty,
			ExpectedAnnual:        policy.ExpectedAnnual,
			ExpectedQuarterly:     policy.ExpectedQuarterly,
			ExpectedMonthly:       policy.ExpectedMonthly,
			CacheTTL:              10 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Interval:    24 * time.Hour,
			Concurrency: 4,
			Period:      "current",
			Score:       true,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
	}
}

// Load reads defaults, then the YAML file, then FLOWCOMPLY_* environment
// variables. The file path comes from FLOWCOMPLY_CONFIG_FILE when set; a
// missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv(envPrefix + "CONFIG_FILE")
	if path == "" {
		path = defaultConfigFile
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	known := make(map[string]string)
	for _, key := range k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return envKey(known, s)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FLOWCOMPLY_ENGINE_PAGE_SIZE to engine.page_size. Names that
// match no known key nest on every underscore.
func envKey(known map[string]string, name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, envPrefix))
	if key, ok := known[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "_", ".")
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CompletenessPolicy returns the configured completeness baseline.
func (e EngineConfig) CompletenessPolicy() dwqar.CompletenessPolicy {
	return dwqar.CompletenessPolicy{SamplesPerPeriod: e.SamplesPerPeriod}
}

func (e EngineConfig) ValidationPolicy() dwqar.ValidationPolicy {
	return dwqar.ValidationPolicy{
		MinCompleteness:     e.MinCompleteness,
		DeadlineWarningDays: e.DeadlineWarningDays,
	}
}

// Policy converts the scoring section to a score policy. Unknown threshold
// names are ignored; missing ones keep their defaults.
func (s ScoringConfig) Policy() scoring.ScorePolicy {
	p := scoring.DefaultScorePolicy()
	for _, sub := range scoring.SubScores {
		if v, ok := s.Thresholds[string(sub)]; ok {
			p.Thresholds[sub] = v
		}
	}
	if len(s.RequiredDocumentTypes) > 0 {
		p.RequiredDocumentTypes = s.RequiredDocumentTypes
	}
	p.ReviewCurrentWithin = s.ReviewCurrentWithin
	p.ReviewStaleWithin = s.ReviewStaleWithin
	p.RecentUploadWindow = s.RecentUploadWindow
	p.RiskAssessmentMaxAge = s.RiskAssessmentMaxAge
	p.InspectionWindow = s.InspectionWindow
	p.IncidentWindow = s.IncidentWindow
	p.IncidentPenalty = s.IncidentPenalty
	p.OverduePenalty = s.OverduePenalty
	p.ExpectedAnnual = s.ExpectedAnnual
	p.ExpectedQuarterly = s.ExpectedQuarterly
	p.ExpectedMonthly = s.ExpectedMonthly
	return p
}
