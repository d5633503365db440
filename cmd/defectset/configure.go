package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/rohankatakam/defectset/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage defectset configuration",
	Long:  `View, initialize and validate configuration, and store the Jira token in the OS keychain.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for a build",
	RunE:  runConfigValidate,
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store the Jira API token in the OS keychain",
	Long: `Store the Jira API token in the OS keychain. The token is read from the
terminal without echo, or from stdin when piped.

JIRA_API_TOKEN still takes precedence when set.`,
	RunE: runConfigSetToken,
}

var configDeleteTokenCmd = &cobra.Command{
	Use:   "delete-token",
	Short: "Remove the Jira API token from the OS keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.NewKeyringManager(logger.Logger).DeleteJiraToken()
	},
}

var configInitForce bool

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configSetTokenCmd)
	configCmd.AddCommand(configDeleteTokenCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	shown.Jira.Token = config.MaskToken(cfg.Jira.Token)

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(&shown); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".defectset", "config.yaml")
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result := cfg.Validate(config.ValidationContextBuild)
	for _, w := range result.Warnings {
		color.New(color.FgYellow).Fprintf(stdout, "warning: %s\n", w)
	}
	if err := result.Err(); err != nil {
		for _, e := range result.Errors {
			color.New(color.FgRed).Fprintf(stdout, "error: %s\n", e)
		}
		return err
	}
	color.New(color.FgGreen).Fprintln(stdout, "Configuration is valid")
	return nil
}

func runConfigSetToken(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager(logger.Logger)
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain is not available; set JIRA_API_TOKEN instead")
	}

	token, err := readToken(os.Stdin)
	if err != nil {
		return err
	}
	if err := km.SetJiraToken(token); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Stored Jira token %s\n", config.MaskToken(token))
	return nil
}

// readToken prompts without echo on a terminal, otherwise reads one line
func readToken(in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		fmt.Print("Jira API token: ")
		data, err := term.ReadPassword(int(in.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
