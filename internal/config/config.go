package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/surveyate/internal/stats"
	"github.com/KaramelBytes/surveyate/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// PlanFile overrides the embedded analysis plan when set.
	PlanFile        string  `mapstructure:"plan_file" yaml:"plan_file"`
	OutputDir       string  `mapstructure:"output_dir" yaml:"output_dir"`
	ConfidenceLevel float64 `mapstructure:"confidence_level" yaml:"confidence_level"`
	BalanceTest     string  `mapstructure:"balance_test" yaml:"balance_test"`
	// Workers bounds concurrent analysis units; 0 means GOMAXPROCS.
	Workers   int    `mapstructure:"workers" yaml:"workers"`
	ResultsDB string `mapstructure:"results_db" yaml:"results_db"`

	// Figures
	FigureFormat   string  `mapstructure:"figure_format" yaml:"figure_format"`
	FigureWidthIn  float64 `mapstructure:"figure_width_in" yaml:"figure_width_in"`
	FigureHeightIn float64 `mapstructure:"figure_height_in" yaml:"figure_height_in"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"plan_file", "output_dir", "confidence_level", "balance_test", "workers",
	"results_db", "figure_format", "figure_width_in", "figure_height_in", "log_level",
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".surveyate"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.surveyate/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SURVEYATE")
	v.AutomaticEnv()

	v.SetDefault("plan_file", "")
	v.SetDefault("output_dir", "results")
	v.SetDefault("confidence_level", 0.90)
	v.SetDefault("balance_test", string(stats.Welch))
	v.SetDefault("workers", 0)
	v.SetDefault("results_db", "")
	v.SetDefault("figure_format", "png")
	v.SetDefault("figure_width_in", 6.4)
	v.SetDefault("figure_height_in", 4.8)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges.
func (c *Global) Validate() error {
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence_level %v outside (0,1)", c.ConfidenceLevel)
	}
	if _, err := stats.ParseTest(c.BalanceTest); err != nil {
		return fmt.Errorf("balance_test: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	switch c.FigureFormat {
	case "png", "svg":
	default:
		return fmt.Errorf("invalid figure_format: %s (use png or svg)", c.FigureFormat)
	}
	if c.FigureWidthIn <= 0 || c.FigureHeightIn <= 0 {
		return fmt.Errorf("figure size must be positive")
	}
	return nil
}

// Set assigns one key from its string form.
func (c *Global) Set(key, val string) error {
	switch key {
	case "plan_file":
		c.PlanFile = val
	case "output_dir":
		c.OutputDir = val
	case "results_db":
		c.ResultsDB = val
	case "confidence_level":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("invalid level for confidence_level: %v", val)
		}
		c.ConfidenceLevel = f
	case "balance_test":
		t, err := stats.ParseTest(val)
		if err != nil {
			return err
		}
		c.BalanceTest = string(t)
	case "workers":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for workers: %v", val)
		}
		c.Workers = i
	case "figure_format":
		f := strings.ToLower(val)
		if f != "png" && f != "svg" {
			return fmt.Errorf("invalid figure_format: %s (use png or svg)", val)
		}
		c.FigureFormat = f
	case "figure_width_in", "figure_height_in":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid size for %s: %v", key, val)
		}
		if key == "figure_width_in" {
			c.FigureWidthIn = f
		} else {
			c.FigureHeightIn = f
		}
	case "log_level":
		switch val {
		case "debug", "info", "warn", "error":
			c.LogLevel = val
		default:
			return fmt.Errorf("invalid log_level: %s", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns one key in display form.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "plan_file":
		return c.PlanFile, nil
	case "output_dir":
		return c.OutputDir, nil
	case "confidence_level":
		return strconv.FormatFloat(c.ConfidenceLevel, 'g', -1, 64), nil
	case "balance_test":
		return c.BalanceTest, nil
	case "workers":
		return strconv.Itoa(c.Workers), nil
	case "results_db":
		return c.ResultsDB, nil
	case "figure_format":
		return c.FigureFormat, nil
	case "figure_width_in":
		return strconv.FormatFloat(c.FigureWidthIn, 'g', -1, 64), nil
	case "figure_height_in":
		return strconv.FormatFloat(c.FigureHeightIn, 'g', -1, 64), nil
	case "log_level":
		return c.LogLevel, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}
