package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Vision    VisionConfig    `mapstructure:"vision"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// VisionConfig tunes the region detector.
type VisionConfig struct {
	ModelPath     string  `mapstructure:"model_path"`
	InputSize     int     `mapstructure:"input_size"`
	ConfThreshold float64 `mapstructure:"conf_threshold"`
	NMSThreshold  float64 `mapstructure:"nms_threshold"`
	ExpandMargin  int     `mapstructure:"expand_margin"`
}

// OCRConfig tunes the text recognizer. Variant order and the early-exit
// threshold were tuned empirically, so they stay configuration rather than
// constants.
type OCRConfig struct {
	Variants            []string `mapstructure:"variants"`
	EarlyExitConfidence float64  `mapstructure:"early_exit_confidence"`
	MinLength           int      `mapstructure:"min_length"`
	MaxLength           int      `mapstructure:"max_length"`
	MinWidth            int      `mapstructure:"min_width"`
	MinHeight           int      `mapstructure:"min_height"`
	Whitelist           string   `mapstructure:"whitelist"`
}

// PipelineConfig tunes the per-frame orchestration.
type PipelineConfig struct {
	CropPadding     int     `mapstructure:"crop_padding"`
	BottomThirdConf float64 `mapstructure:"bottom_third_conf"`
	WholeFrameConf  float64 `mapstructure:"whole_frame_conf"`
	MinTextLength   int     `mapstructure:"min_text_length"`
}

type RulesConfig struct {
	Path string `mapstructure:"path"`
}

type SnapshotsConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads config.yaml from the given path (or the working directory when
// empty), with EAGLEEYE_* environment variables taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:4200"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "eagleeye")
	v.SetDefault("database.password", "eagleeye")
	v.SetDefault("database.name", "eagleeye")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("vision.model_path", "models/yolov8n.onnx")
	v.SetDefault("vision.input_size", 640)
	v.SetDefault("vision.conf_threshold", 0.25)
	v.SetDefault("vision.nms_threshold", 0.45)
	v.SetDefault("vision.expand_margin", 20)

	v.SetDefault("ocr.variants", []string{"contrast", "denoise", "identity"})
	v.SetDefault("ocr.early_exit_confidence", 0.85)
	v.SetDefault("ocr.min_length", 3)
	v.SetDefault("ocr.max_length", 15)
	v.SetDefault("ocr.min_width", 120)
	v.SetDefault("ocr.min_height", 40)
	v.SetDefault("ocr.whitelist", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	v.SetDefault("pipeline.crop_padding", 10)
	v.SetDefault("pipeline.bottom_third_conf", 0.4)
	v.SetDefault("pipeline.whole_frame_conf", 0.3)
	v.SetDefault("pipeline.min_text_length", 3)

	v.SetDefault("rules.path", "config/rules.json")
	v.SetDefault("snapshots.dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("EAGLEEYE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine, defaults plus env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
