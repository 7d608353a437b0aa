package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/config"
)

// skipConfig replaces the root hook for commands that must work without a
// readable configuration.
func skipConfig(*cobra.Command, []string) error { return nil }

func newConfigCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the docscan configuration",
		Long: `Create and inspect the docscan configuration.

Configuration is resolved from defaults, the config file, DOCSCAN_*
environment variables and command-line flags, in increasing priority.`,
	}

	initCmd := &cobra.Command{
		Use:               "init [file]",
		Short:             "Write the default configuration file",
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				filename = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.GenerateDefaultConfigFile(filename, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", filename)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			var data []byte
			var err error
			switch format {
			case "yaml":
				data, err = config.ToYAML(state.cfg)
			case "json":
				data, err = json.MarshalIndent(state.cfg, "", "  ")
				data = append(data, '\n')
			default:
				return fmt.Errorf("invalid format: %s (must be yaml or json)", format)
			}
			if err != nil {
				return err
			}
			if used := state.loader.GetConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	showCmd.Flags().String("format", "yaml", "output format: yaml or json")

	pathsCmd := &cobra.Command{
		Use:               "paths",
		Short:             "List the directories searched for docscan.yaml",
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.GetConfigSearchPaths() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathsCmd)
	return cmd
}
