package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohankatakam/defectset/internal/config"
	"github.com/rohankatakam/defectset/internal/logging"
	"github.com/rohankatakam/defectset/internal/vcs/git"
	"github.com/rohankatakam/defectset/internal/vcs/process"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile  string
	verbose  bool
	repoPath string
	logger   *logging.Logger
	cfg      *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "defectset",
	Short: "defectset - per-release file evolution metrics from git history",
	Long: `defectset walks the releases of a project, maps each release to a commit
and computes evolution metrics (revisions, churn, change set sizes, age,
authors) for every file in the tree at that commit.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		loadErr := err
		if err != nil {
			cfg = config.Default()
		}
		if repoPath != "" {
			cfg.Repository.Path = repoPath
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		// Initialize logger
		logger, err = logging.New(logging.Config{
			Level:      cfg.Log.Level,
			Format:     logging.Format(cfg.Log.Format),
			OutputFile: cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if loadErr != nil {
			logger.WithError(loadErr).Warn("Failed to load config, using defaults")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .defectset/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", "", "path to the git repository (default: repository.path)")

	// Set custom version template
	rootCmd.SetVersionTemplate(`defectset {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	// Add subcommands
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(changedCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(configCmd)
}

// openEngine starts a git engine over the configured repository
func openEngine(ctx context.Context) (*git.Engine, error) {
	engine, err := git.Open(ctx, process.Options{
		Binary:    cfg.Repository.GitBinary,
		Dir:       cfg.Repository.Path,
		Timeout:   cfg.Engine.CallTimeout,
		Serialize: cfg.Engine.SerializeCalls,
		Logger:    logger.Logger,
	})
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"repository": cfg.Repository.Path,
		"timeout":    cfg.Engine.CallTimeout,
	}).Debug("Opened repository")
	return engine, nil
}
