package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configServer string
	configAPIKey string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the cli configuration",
}

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a configuration file",
	Long: `Write a configuration file with the store server URL and, for admin commands, the api key.

Examples:
  store-cli config create --server https://api.vicinae.com
  store-cli config create --server localhost:3000 --api-key s3cret`,
	Args: cobra.NoArgs,
	RunE: createConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	Args:  cobra.NoArgs,
	RunE:  showConfig,
}

func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return GetDefaultConfigPath()
}

func createConfig(cmd *cobra.Command, args []string) error {
	if configServer == "" {
		return errors.New("--server is required")
	}
	cfg := &Config{
		Version: "1",
		Server:  MorphServer(configServer),
		APIKey:  configAPIKey,
	}
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	file, err := configPath()
	if err != nil {
		return err
	}
	if err := cfg.WriteConfig(file); err != nil {
		return err
	}
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]any{"result": 1, "config_file": file})
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", file)
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	file, err := configPath()
	if err != nil {
		return err
	}
	if err := LoadConfig(file); err != nil {
		return err
	}
	cfg := GetConfig()
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]any{
			"config_file": file,
			"server":      cfg.Server,
			"api_key_set": cfg.APIKey != "",
		})
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", file)
	cfg.Print(cmd.OutOrStdout())
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCreateCmd)
	configCmd.AddCommand(configShowCmd)

	configCreateCmd.Flags().StringVarP(&configServer, "server", "s", "", "Store server URL")
	configCreateCmd.Flags().StringVarP(&configAPIKey, "api-key", "k", "", "Admin api key")
}
