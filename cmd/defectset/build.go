package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rohankatakam/defectset/internal/config"
	"github.com/rohankatakam/defectset/internal/dataset"
	"github.com/rohankatakam/defectset/internal/export"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/rohankatakam/defectset/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compute file metrics for every release",
	Long: `Resolve each release of the project to a commit and compute the
evolution metrics of every file in its tree. Results are stored in the
configured database and exported as CSV.

Examples:
  # Releases from Jira, mapped to commits by release date
  defectset build --repo ~/src/bookkeeper --jira-project BOOKKEEPER

  # Releases from a file, mapped by tag, Java sources only
  defectset build --releases-file releases.yaml --strategy tag --ext .java`,
	RunE: runBuild,
}

var (
	buildReleasesFile string
	buildJiraProject  string
	buildStrategy     string
	buildWorkers      int
	buildExtensions   []string
	buildExportDir    string
	buildOnly         []string
	buildNoStore      bool
	buildNoExport     bool
)

func init() {
	buildCmd.Flags().StringVar(&buildReleasesFile, "releases-file", "", "YAML release list (overrides Jira)")
	buildCmd.Flags().StringVar(&buildJiraProject, "jira-project", "", "Jira project key")
	buildCmd.Flags().StringVar(&buildStrategy, "strategy", "", "release to commit mapping: date, tag or pattern")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "concurrent metric workers (default: one per CPU)")
	buildCmd.Flags().StringSliceVar(&buildExtensions, "ext", nil, "only measure files with these extensions")
	buildCmd.Flags().StringVar(&buildExportDir, "export-dir", "", "CSV output directory")
	buildCmd.Flags().StringSliceVar(&buildOnly, "release", nil, "only build the named releases")
	buildCmd.Flags().BoolVar(&buildNoStore, "no-store", false, "do not write to the database")
	buildCmd.Flags().BoolVar(&buildNoExport, "no-export", false, "do not write CSV")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	applyBuildFlags(cmd)

	result := cfg.Validate(config.ValidationContextBuild)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if err := result.Err(); err != nil {
		return err
	}

	strategy, err := dataset.ParseStrategy(cfg.Engine.ResolveStrategy)
	if err != nil {
		return err
	}

	tracker, err := openTracker()
	if err != nil {
		return err
	}
	releases, err := tracker.Releases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}
	releases = filterReleases(releases, buildOnly)
	if len(releases) == 0 {
		return fmt.Errorf("no releases to build")
	}

	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}

	var sinks []dataset.Sink

	var storeSink *storage.Sink
	if cfg.Storage.Enabled {
		store, err := storage.Open(storage.Config{
			Type:        cfg.Storage.Type,
			LocalPath:   cfg.Storage.LocalPath,
			PostgresDSN: cfg.Storage.PostgresDSN,
		}, logger.Logger)
		if err != nil {
			return err
		}
		defer store.Close()

		storeSink, err = storage.NewSink(ctx, store, storage.NewRun(cfg.Repository.Path, string(strategy)))
		if err != nil {
			return err
		}
		sinks = append(sinks, storeSink)
	}

	var csvWriter *export.CSVWriter
	if cfg.Export.Enabled {
		csvWriter, err = export.CreateCSV(exportPath())
		if err != nil {
			return err
		}
		defer csvWriter.Close()
		sinks = append(sinks, csvWriter)
	}

	builder := dataset.NewBuilder(engine, &dataset.BuilderConfig{
		Workers:    cfg.Engine.Workers,
		Strategy:   strategy,
		Extensions: cfg.Engine.Extensions,
	}, logger.Logger, sinks...)

	reports, buildErr := builder.Build(ctx, releases)
	printReports(reports)

	if buildErr != nil {
		return buildErr
	}
	if storeSink != nil {
		if err := storeSink.Finish(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nRun %s stored in %s\n", storeSink.RunID(), cfg.Storage.Type)
	}
	if csvWriter != nil {
		fmt.Fprintf(stdout, "CSV: %s (%s rows)\n", csvWriter.Path(), humanize.Comma(int64(csvWriter.Rows())))
	}
	return nil
}

func applyBuildFlags(cmd *cobra.Command) {
	if buildReleasesFile != "" {
		cfg.Releases.File = buildReleasesFile
	}
	if buildJiraProject != "" {
		cfg.Jira.Project = buildJiraProject
		cfg.Releases.File = ""
	}
	if buildStrategy != "" {
		cfg.Engine.ResolveStrategy = buildStrategy
	}
	if cmd.Flags().Changed("workers") {
		cfg.Engine.Workers = buildWorkers
	}
	if len(buildExtensions) > 0 {
		cfg.Engine.Extensions = buildExtensions
	}
	if buildExportDir != "" {
		cfg.Export.Directory = buildExportDir
	}
	if buildNoStore {
		cfg.Storage.Enabled = false
	}
	if buildNoExport {
		cfg.Export.Enabled = false
	}
}

// exportPath names the CSV after the project, or the repository directory
// when releases come from a file
func exportPath() string {
	name := cfg.Jira.Project
	if cfg.Releases.File != "" || name == "" {
		name = filepath.Base(cfg.Repository.Path)
	}
	stamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(cfg.Export.Directory, fmt.Sprintf("%s_metrics_%s.csv", strings.ToLower(name), stamp))
}

// filterReleases keeps releases whose name is in names; empty keeps all
func filterReleases(releases []models.Release, names []string) []models.Release {
	if len(names) == 0 {
		return releases
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []models.Release
	for _, r := range releases {
		if wanted[r.Name] {
			out = append(out, r)
		}
	}
	if len(out) < len(wanted) {
		logger.WithFields(logrus.Fields{
			"requested": len(wanted),
			"found":     len(out),
		}).Warn("Some requested releases are unknown")
	}
	return out
}

func printReports(reports []*dataset.Report) {
	if len(reports) == 0 {
		return
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"Release", "Commit", "Files", "Measured", "Failed", "Duration"})

	var measured, failed int
	for _, r := range reports {
		if r.Skipped {
			tbl.AppendRow(table.Row{r.Release.Name, "-", "", "", "", "skipped: " + r.SkipReason})
			continue
		}
		measured += r.Measured
		failed += len(r.Failures)
		tbl.AppendRow(table.Row{
			r.Release.Name,
			r.Commit.Short(),
			humanize.Comma(int64(r.FileCount)),
			humanize.Comma(int64(r.Measured)),
			len(r.Failures),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d releases", len(reports)), "", "", humanize.Comma(int64(measured)), failed, ""})

	fmt.Fprintf(stdout, "\n%s\n", tbl.Render())
}
