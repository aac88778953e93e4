package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/framez/backend/internal/client"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath  string
	baseURL     string
	sessionFile string

	cfg    Config
	client *client.Client
	input  *bufio.Reader
}

// RootCmd builds the framezctl command tree.
func RootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "framezctl",
		Short:         "Command line client for Framez",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigPath(), "Path to the config file (or set "+ConfigEnv+")")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Framez API URL (overrides base_url)")
	root.PersistentFlags().StringVar(&a.sessionFile, "session-file", "", "Where the session is stored (overrides session_file)")

	root.AddCommand(
		signUpCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		feedCmd(a),
		postCmd(a),
		deleteCmd(a),
		profileCmd(a),
		storageCheckCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if a.sessionFile != "" {
		cfg.SessionFile = expandHome(a.sessionFile)
	}
	a.cfg = cfg

	c, err := client.New(cfg.BaseURL,
		client.WithTokenStore(client.NewFileTokenStore(cfg.SessionFile)),
		client.WithClientInfo(cfg.ClientInfo),
	)
	if err != nil {
		return err
	}
	if err := c.Init(cmd.Context()); err != nil {
		return err
	}
	a.client = c
	return nil
}

// prompt prints label and reads one line from the command's input.
func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	if a.input == nil {
		a.input = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := a.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
