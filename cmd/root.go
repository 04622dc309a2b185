package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	cfgpkg "github.com/KaramelBytes/surveyate/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags, applied over the loaded config
	cfgFile     string
	debug       bool
	flagPlan    string
	flagWorkers int
	flagLevel   float64

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "surveyate",
	Short: "surveyate: balance checks and treatment effects for survey experiments",
	Long: `surveyate harmonizes an original survey experiment with its synthetic replica,
checks randomization balance, estimates unadjusted and covariate-adjusted
treatment effects, and renders coefficient plots.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.surveyate/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagPlan, "plan", "", "analysis plan file (default is the built-in study plan)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "concurrent analysis units (overrides config)")
	rootCmd.PersistentFlags().Float64Var(&flagLevel, "level", 0, "confidence level for intervals (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("plan") && flagPlan != "" {
		cfg.PlanFile = flagPlan
	}
	if f.Changed("workers") && flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if f.Changed("level") && flagLevel > 0 {
		cfg.ConfidenceLevel = flagLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	l, err := newLogger(cfg.LogLevel, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: logger: %v\n", err)
		return
	}
	logger = l
}

// newLogger builds a console logger on stderr; --debug switches to the
// development config with caller information.
func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Encoding = "console"
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
