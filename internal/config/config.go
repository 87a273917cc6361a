package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/statloom/internal/utils"
)

// PlaceholderAPIKey is the value shipped in example .env files.
const PlaceholderAPIKey = "YOUR_API_KEY_HERE"

var (
	// ErrMissing reports that one of api_url, api_key or model is unset.
	ErrMissing = errors.New("API configuration is missing")
	// ErrPlaceholder reports that api_key still holds the example placeholder.
	ErrPlaceholder = errors.New("API key is still the placeholder value")
)

// Config is built once at startup and handed to the model client and script runner.
type Config struct {
	APIURL         string `mapstructure:"api_url" yaml:"api_url"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	Model          string `mapstructure:"model" yaml:"model"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	// Script execution
	OutputDir        string   `mapstructure:"output_dir" yaml:"output_dir"`
	Interpreter      string   `mapstructure:"interpreter" yaml:"interpreter,omitempty"`
	InterpreterName  string   `mapstructure:"interpreter_name" yaml:"interpreter_name"`
	LocalRuntimeDirs []string `mapstructure:"local_runtime_dirs" yaml:"local_runtime_dirs"`
	ScriptTimeoutSec int      `mapstructure:"script_timeout_sec" yaml:"script_timeout_sec"`
	LegacyFilenames  bool     `mapstructure:"legacy_filenames" yaml:"legacy_filenames"`

	// Dataset sampling
	PromptSampleRows int `mapstructure:"prompt_sample_rows" yaml:"prompt_sample_rows"`
	PreviewRows      int `mapstructure:"preview_rows" yaml:"preview_rows"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// envAliases maps config keys to the environment names accepted besides STATLOOM_<KEY>.
// The LLM_* names match the .env files the desktop build used.
var envAliases = map[string][]string{
	"api_url": {"STATLOOM_API_URL", "LLM_API_URL"},
	"api_key": {"STATLOOM_API_KEY", "LLM_API_KEY"},
	"model":   {"STATLOOM_MODEL", "LLM_MODEL_NAME"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("model", "")
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("output_dir", "output")
	v.SetDefault("interpreter", "")
	v.SetDefault("interpreter_name", "Rscript")
	v.SetDefault("local_runtime_dirs", []string{filepath.Join("R", "R-4.5.1", "bin"), filepath.Join("R", "bin")})
	v.SetDefault("script_timeout_sec", 120)
	v.SetDefault("legacy_filenames", false)
	v.SetDefault("prompt_sample_rows", 5)
	v.SetDefault("preview_rows", 50)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// DefaultPath returns ~/.statloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".statloom", "config.yaml"), nil
}

// Load loads configuration from env, an optional .env file, the yaml config file and defaults.
// Precedence: env > .env file > config file > defaults. Flags are applied by the caller.
// An empty envFile means ".env" in the working directory, if present.
func Load(cfgFile, envFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	setDefaults(v)

	if err := readConfigFile(v, cfgFile, false); err != nil {
		return nil, err
	}

	if err := mergeDotenv(v, envFile); err != nil {
		return nil, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.normalize()
	return &c, nil
}

// LoadFile reads only the yaml config file over defaults. Environment variables,
// .env files and flags are not consulted, so saving the result persists nothing
// but the file's own values. A missing file yields defaults.
func LoadFile(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := readConfigFile(v, cfgFile, true); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.normalize()
	return &c, nil
}

// readConfigFile reads cfgFile, or the optional file at DefaultPath when cfgFile is empty.
func readConfigFile(v *viper.Viper, cfgFile string, allowMissing bool) error {
	if cfgFile == "" {
		path, err := DefaultPath()
		if err != nil {
			return err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

// mergeDotenv reads a dotenv file and merges the recognised keys over the config file layer.
func mergeDotenv(v *viper.Viper, envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err != nil {
		if explicit {
			return fmt.Errorf("env file %s: %w", envFile, err)
		}
		return nil
	}
	ev := viper.New()
	ev.SetConfigFile(envFile)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", envFile, err)
	}
	layer := map[string]any{}
	for key, names := range envAliases {
		for _, name := range names {
			if val := ev.GetString(strings.ToLower(name)); val != "" {
				layer[key] = val
				break
			}
		}
	}
	if len(layer) == 0 {
		return nil
	}
	return v.MergeConfigMap(layer)
}

func (c *Config) normalize() {
	c.APIURL = strings.TrimSpace(c.APIURL)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)
	if c.HTTPTimeoutSec <= 0 {
		c.HTTPTimeoutSec = 60
	}
	if c.ScriptTimeoutSec <= 0 {
		c.ScriptTimeoutSec = 120
	}
	if c.PromptSampleRows <= 0 {
		c.PromptSampleRows = 5
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = 50
	}
	if c.InterpreterName == "" {
		c.InterpreterName = "Rscript"
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
}

// Validate checks the three values the model client cannot work without.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: no configuration loaded", ErrMissing)
	}
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "api_url (LLM_API_URL)")
	}
	if c.APIKey == "" {
		missing = append(missing, "api_key (LLM_API_KEY)")
	}
	if c.Model == "" {
		missing = append(missing, "model (LLM_MODEL_NAME)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrMissing, strings.Join(missing, ", "))
	}
	if strings.Contains(c.APIKey, PlaceholderAPIKey) {
		return fmt.Errorf("%w: replace %s with a real key", ErrPlaceholder, PlaceholderAPIKey)
	}
	return nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.ScriptTimeoutSec) * time.Second
}

// Save writes the given configuration to cfgFile, or to DefaultPath when cfgFile is empty.
func Save(c *Config, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
