package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rapidaai/voicemail/pkg/configs"
	"github.com/rapidaai/voicemail/pkg/utils"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Env      string `mapstructure:"env" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path" validate:"required"`

	MaxRecordingDurationSeconds int    `mapstructure:"max_recording_duration_seconds" validate:"gte=1"`
	MaxRecordings               int    `mapstructure:"max_recordings" validate:"gte=1"`
	DisplayTitle                string `mapstructure:"display_title"`

	// base url of the upload-link service as seen by the answering machine
	UploadLinkURL string `mapstructure:"upload_link_url" validate:"required,url"`

	StorageConfig configs.StorageConfig `mapstructure:"storage" validate:"required"`
	LimiterConfig configs.LimiterConfig `mapstructure:"limiter" validate:"required"`
	CaptureConfig configs.CaptureConfig `mapstructure:"capture" validate:"required"`
	RedisConfig   configs.RedisConfig   `mapstructure:"redis" validate:"required"`
	CorsConfig    configs.CorsConfig    `mapstructure:"cors"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
		log.Printf("no .env file found, reading from environment variables")
	}
	return vConfig, nil
}

// positiveIntDefaults are the numeric options that must be positive. A value
// that is missing, unparsable or not positive falls back to the default here.
var positiveIntDefaults = map[string]int{
	"PORT":                           9090,
	"MAX_RECORDING_DURATION_SECONDS": 300,
	"MAX_RECORDINGS":                 10,
	"STORAGE__LINK_TTL_SECONDS":      600,
	"CAPTURE__SAMPLE_RATE":           44100,
	"REDIS__PORT":                    6379,
	"REDIS__MAX_CONNECTION":          10,
}

// normalizeNumbers replaces unusable positive-int options with their defaults
// so a typo in one of them never stops the application from starting.
func normalizeNumbers(v *viper.Viper) {
	for key, fallback := range positiveIntDefaults {
		raw := strings.TrimSpace(v.GetString(key))
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			v.Set(key, n)
			continue
		}
		log.Printf("invalid value %q for %s, using default %d", raw, key, fallback)
		v.Set(key, fallback)
	}
}

func setDefault(v *viper.Viper) {
	// keeping watch on https://github.com/spf13/viper/issues/188
	// every key needs a default so AutomaticEnv can resolve it during Unmarshal

	for key, value := range positiveIntDefaults {
		v.SetDefault(key, value)
	}

	v.SetDefault("SERVICE_NAME", "answering-machine")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("ENV", utils.DEVELOPMENT.Get())
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "./logs")

	v.SetDefault("DISPLAY_TITLE", "Leave a message after the beep")
	v.SetDefault("UPLOAD_LINK_URL", "http://localhost:9090")

	v.SetDefault("STORAGE__PROVIDER", "dropbox")
	v.SetDefault("STORAGE__ACCESS_TOKEN", "")
	v.SetDefault("STORAGE__FOLDER_PATH", "/voicemail-messages")
	v.SetDefault("STORAGE__S3__BUCKET", "")
	v.SetDefault("STORAGE__S3__REGION", "us-east-1")
	v.SetDefault("STORAGE__S3__ACCESS_KEY_ID", "")
	v.SetDefault("STORAGE__S3__SECRET_ACCESS_KEY", "")
	v.SetDefault("STORAGE__S3__ENDPOINT", "")

	v.SetDefault("LIMITER__STORE", "file")
	v.SetDefault("LIMITER__STATE_DIR", defaultStateDir())
	v.SetDefault("LIMITER__CLIENT_ID", defaultClientId())

	v.SetDefault("CAPTURE__BACKEND", "ffmpeg")
	v.SetDefault("CAPTURE__DEVICE", "")

	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__DB", 0)
	v.SetDefault("REDIS__PASSWORD", "")

	v.SetDefault("CORS__ALLOW_ORIGINS", "*")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	normalizeNumbers(v)
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}

// MaxRecordingDuration is the Duration Guard ceiling.
func (cfg *AppConfig) MaxRecordingDuration() time.Duration {
	return time.Duration(cfg.MaxRecordingDurationSeconds) * time.Second
}

func (cfg *AppConfig) LinkTTL() time.Duration {
	return time.Duration(cfg.StorageConfig.LinkTTLSeconds) * time.Second
}

func (cfg *AppConfig) Environment() utils.RapidaEnvironment {
	return utils.FromEnvironmentStr(cfg.Env)
}

func defaultStateDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "answering-machine")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "answering-machine")
	}
	return filepath.Join(".", ".answering-machine")
}

func defaultClientId() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "local"
}
