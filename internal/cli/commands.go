package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vicinaehq/backend/internal/storesrv/catcommon"
	"github.com/vicinaehq/backend/pkg/api"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "store-cli",
	Short: "store-cli - A command line interface for the Vicinae extension store",
	Long: `store-cli talks to a Vicinae extension store server. It lists, searches and downloads
extensions, and with an admin api key publishes archives and manages trending and the kill list.`,
	PersistentPreRunE: preRunHandlePersistents,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newHashSecretCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if jsonOutput {
			kv := map[string]any{
				"result": 0,
				"error":  err.Error(),
			}
			printJSON(os.Stdout, kv)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// commands that work without a config file
var configFreeCommands = map[string]bool{
	"config":      true,
	"version":     true,
	"hash-secret": true,
}

func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if configFreeCommands[c.Name()] {
			return nil
		}
	}

	file := configFile
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}
	if err := LoadConfig(file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found, configure the cli with \"store-cli config create\" first")
		}
		return fmt.Errorf("unable to load config file: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of store-cli",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				kv := map[string]string{
					"version": api.ServerVersion,
				}
				printJSON(cmd.OutOrStdout(), kv)
			} else {
				cmd.Println("store-cli v" + api.ServerVersion)
			}
		},
	}
}

func newHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Hash an admin secret for the server's api_secret_hash setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := catcommon.HashSecret(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"hash": hash})
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// printJSON prints data as indented JSON to w
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, string(jsonData))
}

// printRawJSON re-indents a server response.
func printRawJSON(w io.Writer, body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	printJSON(w, v)
	return nil
}
