// Package config loads the cosvault configuration from the environment
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// DefaultCompressThresholdMB is the upload size above which payloads are zipped.
const DefaultCompressThresholdMB = 100

// Config is the struct for the configuration
type Config struct {
	SecretID            string `yaml:"tencentcloud_secret_id"`
	SecretKey           string `yaml:"tencentcloud_secret_key"`
	Bucket              string `yaml:"cos_bucket_name"`
	Region              string `yaml:"cos_region"`
	Endpoint            string `yaml:"cos_endpoint"`
	ParentDir           string `yaml:"agent_parent_dir"`
	FoldersConfig       string `yaml:"agent_folders_config"`
	CompressThresholdMB int    `yaml:"compress_threshold_mb"`
	CallbackBaseURL     string `yaml:"callback_base_url"`
	EnableLogging       bool   `yaml:"enable_logging"`
	LogLevel            string `yaml:"log_level"`
	DownloadDir         string `yaml:"download_dir"`
}

// ErrMissingCredentials is returned when the credential pair is not configured.
var ErrMissingCredentials = errors.New("TENCENTCLOUD_SECRET_ID or TENCENTCLOUD_SECRET_KEY not configured")

// ErrMissingBucket is returned when the bucket or region is not configured.
var ErrMissingBucket = errors.New("COS_BUCKET_NAME or COS_REGION not configured")

// Load builds the configuration. Precedence: environment variables,
// then the optional YAML file, then built-in defaults. A config.env file
// next to the binary is loaded into the environment first if present.
func Load(yamlFile string) (Config, error) {
	_ = godotenv.Load("config.env")

	v := viper.New()
	v.SetDefault("AGENT_PARENT_DIR", "VCPAgentAI")
	v.SetDefault("AGENT_FOLDERS_CONFIG", "")
	v.SetDefault("COMPRESS_THRESHOLD_MB", DefaultCompressThresholdMB)
	v.SetDefault("CALLBACK_BASE_URL", "http://localhost:6005/plugin-callback")
	v.SetDefault("ENABLE_LOGGING", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DOWNLOAD_DIR", "./download")

	if yamlFile != "" {
		if err := applyYamlFile(v, yamlFile); err != nil {
			return Config{}, err
		}
	}

	v.AutomaticEnv()

	cfg := Config{
		SecretID:            v.GetString("TENCENTCLOUD_SECRET_ID"),
		SecretKey:           v.GetString("TENCENTCLOUD_SECRET_KEY"),
		Bucket:              v.GetString("COS_BUCKET_NAME"),
		Region:              v.GetString("COS_REGION"),
		Endpoint:            v.GetString("COS_ENDPOINT"),
		ParentDir:           v.GetString("AGENT_PARENT_DIR"),
		FoldersConfig:       v.GetString("AGENT_FOLDERS_CONFIG"),
		CompressThresholdMB: v.GetInt("COMPRESS_THRESHOLD_MB"),
		CallbackBaseURL:     v.GetString("CALLBACK_BASE_URL"),
		EnableLogging:       v.GetBool("ENABLE_LOGGING"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		DownloadDir:         v.GetString("DOWNLOAD_DIR"),
	}
	if cfg.CompressThresholdMB <= 0 {
		cfg.CompressThresholdMB = DefaultCompressThresholdMB
	}
	return cfg, nil
}

// applyYamlFile reads a YAML file and registers its values as defaults,
// so that environment variables still win.
func applyYamlFile(v *viper.Viper, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading YAML file: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("error parsing YAML file: %w", err)
	}
	for key, value := range raw {
		v.SetDefault(strings.ToUpper(key), value)
	}
	return nil
}

// Validate checks the settings the process cannot run without.
func (c Config) Validate() error {
	if c.SecretID == "" || c.SecretKey == "" {
		return ErrMissingCredentials
	}
	if c.Bucket == "" || c.Region == "" {
		return ErrMissingBucket
	}
	return nil
}
