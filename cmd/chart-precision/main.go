// chart-precision extracts precise element geometry from annotated trading
// charts: a labeled reference grid is overlaid, a vision model maps each
// element to grid cells, and per-kind refiners sharpen the mapping to pixel
// coordinates.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/pipeline"
	"github.com/Recursive-Llama/Lotus-Trader-sub011/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	verbose    bool
	configPath string
	packPath   string
	outputDir  string
	debugDir   string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chart-precision",
	Short: "Precise chart element localization",
	Long: `chart-precision maps annotated trading chart elements (horizontal
lines, diagonals, arrows, zones, text labels) to exact pixel coordinates
using a reference grid and a vision model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run <chart-image>",
	Short: "Run the extraction pipeline on one chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("no API key: set api_key in the config file or GEMINI_API_KEY")
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if debugDir != "" {
			cfg.DebugDir = debugDir
		}

		pack, err := loadInfoPack(packPath)
		if err != nil {
			return err
		}

		client, err := vision.NewClient(cmd.Context(), cfg.APIKey, logger)
		if err != nil {
			return err
		}

		runner := pipeline.NewRunner(
			vision.NewDetector(client, cfg.Model, logger),
			client,
			pipeline.Options{
				Model:           cfg.Model,
				MaxOutputTokens: cfg.MaxOutputTokens,
				PromptDir:       cfg.PromptDir,
				OutputDir:       cfg.OutputDir,
				DebugDir:        cfg.DebugDir,
				GridRows:        cfg.Grid.Rows,
				GridCols:        cfg.Grid.Cols,
				GridPadding:     cfg.Grid.Padding,
			},
			logger,
		)

		bundle, err := runner.Run(cmd.Context(), args[0], pack)
		if err != nil {
			return err
		}

		logger.Info("pipeline finished",
			zap.String("chart", bundle.ChartPath),
			zap.Int("horizontal_lines", lineCount(bundle)),
			zap.Int("diagonals", len(bundle.Precision.Diagonals)),
			zap.Int("arrows", len(bundle.Precision.Arrows)),
			zap.Int("zones", len(bundle.Precision.Zones)))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("chart-precision %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

func loadInfoPack(path string) (pipeline.InfoPack, error) {
	var pack pipeline.InfoPack
	data, err := os.ReadFile(path)
	if err != nil {
		return pack, fmt.Errorf("info pack: %w", err)
	}
	if err := json.Unmarshal(data, &pack); err != nil {
		return pack, fmt.Errorf("info pack parse: %w", err)
	}
	return pack, nil
}

func lineCount(bundle *pipeline.ResultBundle) int {
	if bundle.Precision.Horizontals == nil {
		return 0
	}
	return bundle.Precision.Horizontals.Count
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	runCmd.Flags().StringVarP(&packPath, "pack", "p", "", "Path to the info pack JSON (required)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")
	runCmd.Flags().StringVar(&debugDir, "debug-dir", "", "Write per-element debug crops here")
	_ = runCmd.MarkFlagRequired("pack")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
