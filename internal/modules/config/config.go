package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
)

type RiskConfig struct {
	InitialCapital  float64 // quote currency, required
	MaxPositionSize float64 // доля equity на одну позицию, напр. 0.05
	DailyLossLimit  float64 // доля initial_capital, напр. 0.02
	MaxDrawdown     float64 // просадка от high-water mark, напр. 0.10
}

type DecisionConfig struct {
	ConfidenceThreshold float64
	ModelTimeout        time.Duration
	Model               string // logit | onnx
	OnnxModelPath       string
}

type ExecutionConfig struct {
	Venue          string // paper | chain
	VenueURL       string
	MaxSlippageBps float64
	ConfirmTimeout time.Duration
	SubmitRetries  int
	BackoffBase    time.Duration
}

type ObserverConfig struct {
	Mode      string // feed | poll
	FeedURL   string
	PollURL   string
	Staleness time.Duration // старше этого — "нет наблюдения на этом тике"
}

type ImproveConfig struct {
	RetrainingInterval     time.Duration
	PerformanceReviewEvery int // trades, not time
	StrategyEvolution      time.Duration
	WindowSize             int
}

type Config struct {
	Service struct {
		Host      string
		AdminPort int
	}
	DB       string
	Telegram struct {
		Token  string
		ChatID int64
	}
	Jaeger struct {
		Host string
		Port int
	}

	Risk      RiskConfig
	Decision  DecisionConfig
	Execution ExecutionConfig
	Observer  ObserverConfig
	Improve   ImproveConfig

	TickInterval time.Duration
	SizeFraction float64 // доля equity на одну заявку (до риск-проверок)

	Universe []string // торгуемые инструменты, configs/universe.yaml
}

func NewConfig() (*Config, error) {
	v := viper.New()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local"
	}
	configDir := os.Getenv(configDirENV)
	if configDir == "" {
		configDir = "configs"
	}
	v.SetConfigName(strings.TrimSuffix(configFileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// конфиг-файл опционален: env + дефолты покрывают всё, кроме капитала
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	cfg.Service.Host = v.GetString("service.host")
	cfg.Service.AdminPort = v.GetInt("service.admin_port")
	cfg.DB = v.GetString("db_dsn")
	cfg.Telegram.Token = v.GetString("telegram.token")
	cfg.Telegram.ChatID = v.GetInt64("telegram.chat_id")
	cfg.Jaeger.Host = v.GetString("jaeger.host")
	cfg.Jaeger.Port = v.GetInt("jaeger.port")

	cfg.Risk = RiskConfig{
		InitialCapital:  v.GetFloat64("risk.initial_capital"),
		MaxPositionSize: v.GetFloat64("risk.max_position_size"),
		DailyLossLimit:  v.GetFloat64("risk.daily_loss_limit"),
		MaxDrawdown:     v.GetFloat64("risk.max_drawdown"),
	}
	cfg.Decision = DecisionConfig{
		ConfidenceThreshold: v.GetFloat64("decision.confidence_threshold"),
		ModelTimeout:        v.GetDuration("decision.model_timeout"),
		Model:               v.GetString("decision.model"),
		OnnxModelPath:       v.GetString("decision.onnx_model_path"),
	}
	cfg.Execution = ExecutionConfig{
		Venue:          v.GetString("execution.venue"),
		VenueURL:       v.GetString("execution.venue_url"),
		MaxSlippageBps: v.GetFloat64("execution.max_slippage_bps"),
		ConfirmTimeout: v.GetDuration("execution.confirm_timeout"),
		SubmitRetries:  v.GetInt("execution.submit_retries"),
		BackoffBase:    v.GetDuration("execution.backoff_base"),
	}
	cfg.Observer = ObserverConfig{
		Mode:      v.GetString("observer.mode"),
		FeedURL:   v.GetString("observer.feed_url"),
		PollURL:   v.GetString("observer.poll_url"),
		Staleness: v.GetDuration("observer.staleness"),
	}
	cfg.Improve = ImproveConfig{
		RetrainingInterval:     v.GetDuration("improve.retraining_interval"),
		PerformanceReviewEvery: v.GetInt("improve.performance_review_every"),
		StrategyEvolution:      v.GetDuration("improve.strategy_evolution"),
		WindowSize:             v.GetInt("improve.window_size"),
	}
	cfg.TickInterval = v.GetDuration("tick_interval")
	cfg.SizeFraction = v.GetFloat64("size_fraction")

	universe, err := loadUniverse(configDir + "/" + v.GetString("universe_file"))
	if err != nil {
		return nil, err
	}
	cfg.Universe = universe

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.admin_port", 8080)

	v.SetDefault("risk.max_position_size", 0.05)
	v.SetDefault("risk.daily_loss_limit", 0.02)
	v.SetDefault("risk.max_drawdown", 0.10)

	v.SetDefault("decision.confidence_threshold", 0.7)
	v.SetDefault("decision.model_timeout", "5s")
	v.SetDefault("decision.model", "logit")

	v.SetDefault("execution.venue", "paper")
	v.SetDefault("execution.max_slippage_bps", 50.0)
	v.SetDefault("execution.confirm_timeout", "30s")
	v.SetDefault("execution.submit_retries", 3)
	v.SetDefault("execution.backoff_base", "1s")

	v.SetDefault("observer.mode", "feed")
	v.SetDefault("observer.staleness", "2m")

	v.SetDefault("improve.retraining_interval", "24h")
	v.SetDefault("improve.performance_review_every", 100)
	v.SetDefault("improve.strategy_evolution", "168h")
	v.SetDefault("improve.window_size", 500)

	v.SetDefault("tick_interval", "15s")
	v.SetDefault("size_fraction", 0.02)
	v.SetDefault("universe_file", "universe.yaml")

	v.SetDefault("jaeger.host", "127.0.0.1")
	v.SetDefault("jaeger.port", 6831)
}

// validate: неверные параметры капитала — это Fatal, процесс не стартует.
func (c *Config) validate() error {
	if c.Risk.InitialCapital <= 0 {
		return errors.New("risk.initial_capital is required and must be > 0")
	}
	if c.Risk.MaxPositionSize <= 0 || c.Risk.MaxPositionSize > 1 {
		return errors.Errorf("risk.max_position_size out of range: %v", c.Risk.MaxPositionSize)
	}
	if c.Risk.DailyLossLimit <= 0 || c.Risk.DailyLossLimit > 1 {
		return errors.Errorf("risk.daily_loss_limit out of range: %v", c.Risk.DailyLossLimit)
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown > 1 {
		return errors.Errorf("risk.max_drawdown out of range: %v", c.Risk.MaxDrawdown)
	}
	if c.Decision.ConfidenceThreshold < 0 || c.Decision.ConfidenceThreshold > 1 {
		return errors.Errorf("decision.confidence_threshold out of range: %v", c.Decision.ConfidenceThreshold)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe is empty")
	}
	return nil
}

type universeFile struct {
	Assets []string `yaml:"assets"`
}

func loadUniverse(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open universe file %s", path)
	}
	defer func() {
		_ = file.Close()
	}()

	var uf universeFile
	if err := yaml.NewDecoder(file).Decode(&uf); err != nil {
		return nil, errors.Wrap(err, "decode universe file")
	}
	return uf.Assets, nil
}
