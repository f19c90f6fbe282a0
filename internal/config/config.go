package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`
}

// StoreConfig configures the run persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OverridePolicy selects how the fact-override stage treats missing evidence.
type OverridePolicy string

const (
	// OverrideBinary locks the score to 1 whenever zero matching evidence
	// records assert existence. Canonical policy: simplest and strictly
	// auditable.
	OverrideBinary OverridePolicy = "binary"

	// OverrideGraduated penalizes by confidence band instead: heavy below
	// the low band, a moderate cap below the high band.
	OverrideGraduated OverridePolicy = "graduated"
)

// PolicyConfig holds the hand-specified rule constants for synthesis and
// meta consolidation. The thresholds carry no derivation beyond operational
// experience; they are exposed here as knobs rather than baked in.
type PolicyConfig struct {
	// Synthesis.
	VarianceThreshold       int      `yaml:"variance_threshold" mapstructure:"variance_threshold"`
	SecurityKeywords        []string `yaml:"security_keywords" mapstructure:"security_keywords"`
	ArchitectureKeywords    []string `yaml:"architecture_keywords" mapstructure:"architecture_keywords"`
	FoundationKeywords      []string `yaml:"foundation_keywords" mapstructure:"foundation_keywords"`
	TestingKeywords         []string `yaml:"testing_keywords" mapstructure:"testing_keywords"`
	ContradictionConfidence float64  `yaml:"contradiction_confidence" mapstructure:"contradiction_confidence"`
	ContradictionPenalty    int      `yaml:"contradiction_penalty" mapstructure:"contradiction_penalty"`
	StrongEvidence          float64  `yaml:"strong_evidence" mapstructure:"strong_evidence"`

	// Fact override variant.
	Override              OverridePolicy `yaml:"override" mapstructure:"override"`
	GraduatedHeavyBand    float64        `yaml:"graduated_heavy_band" mapstructure:"graduated_heavy_band"`
	GraduatedModerateBand float64        `yaml:"graduated_moderate_band" mapstructure:"graduated_moderate_band"`

	// Meta consolidation.
	TransientStability float64 `yaml:"transient_stability" mapstructure:"transient_stability"`
	CrossRunVariance   float64 `yaml:"cross_run_variance" mapstructure:"cross_run_variance"`
	MetaLowStability   float64 `yaml:"meta_low_stability" mapstructure:"meta_low_stability"`
	MetaLowPenalty     float64 `yaml:"meta_low_penalty" mapstructure:"meta_low_penalty"`
	MetaMidStability   float64 `yaml:"meta_mid_stability" mapstructure:"meta_mid_stability"`
	MetaMidPenalty     float64 `yaml:"meta_mid_penalty" mapstructure:"meta_mid_penalty"`
	MetaBoostScore     float64 `yaml:"meta_boost_score" mapstructure:"meta_boost_score"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRIBUNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "tribunal.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("policy.variance_threshold", 1)
	v.SetDefault("policy.security_keywords", []string{"security", "safety", "safe"})
	v.SetDefault("policy.architecture_keywords", []string{"architecture", "orchestration"})
	v.SetDefault("policy.foundation_keywords", []string{"state", "foundation"})
	v.SetDefault("policy.testing_keywords", []string{"test"})
	v.SetDefault("policy.contradiction_confidence", 0.6)
	v.SetDefault("policy.contradiction_penalty", 2)
	v.SetDefault("policy.strong_evidence", 0.8)
	v.SetDefault("policy.override", string(OverrideBinary))
	v.SetDefault("policy.graduated_heavy_band", 0.3)
	v.SetDefault("policy.graduated_moderate_band", 0.7)
	v.SetDefault("policy.transient_stability", 0.6)
	v.SetDefault("policy.cross_run_variance", 1.5)
	v.SetDefault("policy.meta_low_stability", 0.5)
	v.SetDefault("policy.meta_low_penalty", 0.5)
	v.SetDefault("policy.meta_mid_stability", 0.7)
	v.SetDefault("policy.meta_mid_penalty", 0.2)
	v.SetDefault("policy.meta_boost_score", 4.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
