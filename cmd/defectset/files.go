package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files <commit>",
	Short: "List every file in the tree of a commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runFiles,
}

var changedCmd = &cobra.Command{
	Use:   "changed <commit>",
	Short: "List the files touched by a commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runChanged,
}

var (
	filesOutput   string
	changedOutput string
)

// treeEntry is one file of a listed tree
type treeEntry struct {
	Path string `json:"path" yaml:"path"`
	Blob string `json:"blob" yaml:"blob"`
}

func init() {
	filesCmd.Flags().StringVarP(&filesOutput, "output", "o", outputText, "output format: text, json or yaml")
	changedCmd.Flags().StringVarP(&changedOutput, "output", "o", outputText, "output format: text, json or yaml")
}

func runFiles(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(filesOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	files, err := engine.Files(ctx, args[0])
	if err != nil {
		return err
	}

	entries := make([]treeEntry, 0, len(files))
	for name, f := range files {
		entries = append(entries, treeEntry{Path: name, Blob: f.Hash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return render(stdout, filesOutput, entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%s %s\n", e.Blob, e.Path)
		}
	})
}

func runChanged(cmd *cobra.Command, args []string) error {
	if err := checkOutputFormat(changedOutput); err != nil {
		return err
	}
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	paths, err := engine.ChangedFiles(ctx, args[0])
	if err != nil {
		return err
	}

	return render(stdout, changedOutput, paths, func(w io.Writer) {
		for _, p := range paths {
			fmt.Fprintln(w, p)
		}
	})
}
