package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/vicinaehq/backend/pkg/api"
)

var restoreFlag bool

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Recompute or override trending extensions",
}

var trendingUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Recompute the trending set now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := NewHTTPClient(GetConfig()).Admin(http.MethodPost, storePath+"/update-trending")
		if err != nil {
			return err
		}
		if jsonOutput {
			return printRawJSON(cmd.OutOrStdout(), body)
		}
		var rsp api.TrendingResponse
		if err := json.Unmarshal(body, &rsp); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d extensions trending\n", rsp.Message, len(rsp.Trending), rsp.Candidates)
		return nil
	},
}

func newTrendingFlagCmd(use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <author>/<name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			author, name, err := parseExtensionRef(args[0])
			if err != nil {
				return err
			}
			body, err := NewHTTPClient(GetConfig()).Admin(method, extensionPath(author, name, "trending"))
			if err != nil {
				return err
			}
			return printAction(cmd, body)
		},
	}
}

var killListCmd = &cobra.Command{
	Use:   "kill-list <author>/<name>",
	Short: "Remove an extension from the store, or restore it with --restore",
	Long: `Remove an extension from listings, search, detail and download. Its files and
download count are kept and --restore brings it back.

Examples:
  store-cli kill-list alice/clipboard-history
  store-cli kill-list alice/clipboard-history --restore`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		author, name, err := parseExtensionRef(args[0])
		if err != nil {
			return err
		}
		method := http.MethodPut
		if restoreFlag {
			method = http.MethodDelete
		}
		body, err := NewHTTPClient(GetConfig()).Admin(method, extensionPath(author, name, "kill-list"))
		if err != nil {
			return err
		}
		return printAction(cmd, body)
	},
}

func printAction(cmd *cobra.Command, body []byte) error {
	if jsonOutput {
		return printRawJSON(cmd.OutOrStdout(), body)
	}
	var rsp api.ActionResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rsp.Message)
	return nil
}

func init() {
	rootCmd.AddCommand(trendingCmd, killListCmd)
	trendingCmd.AddCommand(
		trendingUpdateCmd,
		newTrendingFlagCmd("mark", "Flag an extension as trending until the next update", http.MethodPut),
		newTrendingFlagCmd("unmark", "Clear the trending flag of an extension", http.MethodDelete),
	)
	killListCmd.Flags().BoolVar(&restoreFlag, "restore", false, "Restore a kill listed extension")
}
