package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rohankatakam/defectset/internal/errors"
	"github.com/rohankatakam/defectset/internal/models"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <path>",
	Short: "Compute the metrics of one file at one commit",
	Long: `Compute every evolution metric for a single file as of the selected commit.

Examples:
  defectset metrics src/main/java/App.java --tag release-4.2.0
  defectset metrics src/main/java/App.java --date 2015-06-30 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runMetrics,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the commit a tag, date or pattern resolves to",
	RunE:  runResolve,
}

var (
	metricsTarget commitTarget
	resolveTarget commitTarget
	metricsOutput string
	resolveOutput string
)

func init() {
	metricsTarget.addFlags(metricsCmd)
	metricsCmd.Flags().StringVarP(&metricsOutput, "output", "o", outputText, "output format: text, json or yaml")

	resolveTarget.addFlags(resolveCmd)
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", outputText, "output format: text, json or yaml")
}

// fileMetrics is the printable result of the metrics command
type fileMetrics struct {
	Path    string                 `json:"path" yaml:"path"`
	Blob    string                 `json:"blob" yaml:"blob"`
	Commit  models.Commit          `json:"commit" yaml:"commit"`
	Metrics map[string]interface{} `json:"metrics" yaml:"metrics"`

	file *models.File
}

func newFileMetrics(file *models.File, commit models.Commit) *fileMetrics {
	out := &fileMetrics{
		Path:    file.Name,
		Blob:    file.Hash,
		Commit:  commit,
		Metrics: make(map[string]interface{}),
		file:    file,
	}
	for _, k := range models.AllMetricKeys() {
		v, _ := file.Value(k)
		out.Metrics[k.String()] = v.Interface()
	}
	return out
}

func (m *fileMetrics) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s at %s (%s)\n\n", m.Path, m.Commit.Short(), m.Commit.Date.Format(time.RFC3339))
	for _, k := range models.AllMetricKeys() {
		v, _ := m.file.Value(k)
		value := v.String()
		if !v.IsDefined() {
			value = "undefined"
			if v.Reason != "" {
				value += " (" + v.Reason + ")"
			}
		}
		fmt.Fprintf(w, "  %-24s %s\n", k.String(), value)
	}
}

func runMetrics(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(metricsOutput); err != nil {
		return err
	}
	if err := metricsTarget.validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	commit, err := metricsTarget.resolve(ctx, engine)
	if err != nil {
		return err
	}

	files, err := engine.Files(ctx, commit.Hash)
	if err != nil {
		return err
	}
	file, ok := files[args[0]]
	if !ok {
		return errors.NotFoundf("%s is not in the tree of %s", args[0], commit.Short())
	}

	if err := engine.ComputeFileMetrics(ctx, file, commit); err != nil {
		return err
	}

	result := newFileMetrics(file, commit)
	return render(stdout, metricsOutput, result, result.writeText)
}

func runResolve(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(resolveOutput); err != nil {
		return err
	}
	if err := resolveTarget.validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	commit, err := resolveTarget.resolve(ctx, engine)
	if err != nil {
		return err
	}

	return render(stdout, resolveOutput, commit, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", commit.Hash, commit.Date.Format(time.RFC3339))
	})
}
