package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vicinaehq/backend/pkg/api"
)

const storePath = "/v1/store"

var (
	listCategory string
	listPage     int
	listLimit    int
	outputFile   string
)

// parseExtensionRef splits "author/name".
func parseExtensionRef(ref string) (author, name string, err error) {
	author, name, ok := strings.Cut(strings.Trim(ref, "/"), "/")
	if !ok || author == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid extension %q, expected <author>/<name>", ref)
	}
	return author, name, nil
}

func extensionPath(author, name string, suffix ...string) string {
	p := storePath + "/" + url.PathEscape(author) + "/" + url.PathEscape(name)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

func pageQuery() map[string]string {
	q := map[string]string{}
	if listPage > 0 {
		q["page"] = strconv.Itoa(listPage)
	}
	if listLimit > 0 {
		q["limit"] = strconv.Itoa(listLimit)
	}
	return q
}

var publishCmd = &cobra.Command{
	Use:   "publish <archive.zip>",
	Short: "Publish an extension archive",
	Long: `Upload an extension archive. The archive must contain package.json at its root.
Publishing an existing extension replaces its latest version.

Examples:
  store-cli publish clipboard-history.zip`,
	Args: cobra.ExactArgs(1),
	RunE: publishExtension,
}

func publishExtension(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("unable to read archive: %w", err)
	}
	client := NewHTTPClient(GetConfig())
	body, err := client.Upload(storePath+"/extension/upload", filepath.Base(args[0]), data)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printRawJSON(cmd.OutOrStdout(), body)
	}
	var rsp api.PublishResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	verb := "Updated"
	if rsp.Extension.IsNew {
		verb = "Published"
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s (%s)\n", verb, rsp.Extension.Key, rsp.Extension.Title)
	fmt.Fprintf(w, "Checksum: %s\n", rsp.Extension.Checksum)
	if rsp.Extension.DownloadURL != "" {
		fmt.Fprintf(w, "Download: %s\n", rsp.Extension.DownloadURL)
	}
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List extensions, most downloaded first",
	Long: `List extensions, most downloaded first.

Examples:
  store-cli list
  store-cli list --category productivity --page 2 --limit 20`,
	Args: cobra.NoArgs,
	RunE: listExtensions,
}

func listExtensions(cmd *cobra.Command, args []string) error {
	q := pageQuery()
	q["category"] = listCategory
	body, err := NewHTTPClient(GetConfig()).Get(storePath+"/list", q)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printRawJSON(cmd.OutOrStdout(), body)
	}
	var rsp api.ListResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	printExtensionTable(cmd, rsp.Extensions, rsp.Pagination)
	return nil
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search extensions by name, title or description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  searchExtensions,
}

func searchExtensions(cmd *cobra.Command, args []string) error {
	q := pageQuery()
	q["q"] = strings.Join(args, " ")
	body, err := NewHTTPClient(GetConfig()).Get(storePath+"/search", q)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printRawJSON(cmd.OutOrStdout(), body)
	}
	var rsp api.SearchResponse
	if err := json.Unmarshal(body, &rsp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	printExtensionTable(cmd, rsp.Extensions, rsp.Pagination)
	return nil
}

func printExtensionTable(cmd *cobra.Command, exts []api.ExtensionView, p api.Pagination) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTENSION\tTITLE\tDOWNLOADS\tTRENDING")
	for _, e := range exts {
		trending := ""
		if e.Trending {
			trending = "yes"
		}
		fmt.Fprintf(tw, "%s/%s\t%s\t%d\t%s\n", e.Author.Handle, e.Name, e.Title, e.DownloadCount, trending)
	}
	tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d extensions)\n", p.Page, max(p.TotalPages, 1), p.Total)
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories with their extension counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := NewHTTPClient(GetConfig()).Get(storePath+"/categories", nil)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printRawJSON(cmd.OutOrStdout(), body)
		}
		var rsp []api.CategoryView
		if err := json.Unmarshal(body, &rsp); err != nil {
			return fmt.Errorf("failed to parse response: %v", err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEXTENSIONS")
		for _, c := range rsp {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Name, c.Extensions)
		}
		return tw.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <author>/<name>",
	Short: "Show an extension",
	Args:  cobra.ExactArgs(1),
	RunE:  getExtension,
}

func getExtension(cmd *cobra.Command, args []string) error {
	author, name, err := parseExtensionRef(args[0])
	if err != nil {
		return err
	}
	body, err := NewHTTPClient(GetConfig()).Get(extensionPath(author, name), nil)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printRawJSON(cmd.OutOrStdout(), body)
	}
	var e api.ExtensionView
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s/%s  %s\n", e.Author.Handle, e.Name, e.Title)
	if e.Description != "" {
		fmt.Fprintf(w, "  %s\n", e.Description)
	}
	fmt.Fprintf(w, "Author:     %s (%s)\n", e.Author.Name, e.Author.ProfileURL)
	fmt.Fprintf(w, "Downloads:  %d\n", e.DownloadCount)
	fmt.Fprintf(w, "Trending:   %t\n", e.Trending)
	fmt.Fprintf(w, "API:        %s\n", e.APIVersion)
	fmt.Fprintf(w, "Platforms:  %s\n", strings.Join(e.Platforms, ", "))
	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, c.Name)
	}
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(categories, ", "))
	fmt.Fprintf(w, "Checksum:   %s\n", e.Checksum)
	fmt.Fprintf(w, "Updated:    %s\n", e.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range e.Commands {
		fmt.Fprintf(w, "  - %s (%s)\n", c.Name, c.Mode)
	}
	return nil
}

var downloadCmd = &cobra.Command{
	Use:   "download <author>/<name>",
	Short: "Download the latest archive of an extension",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadExtension,
}

func downloadExtension(cmd *cobra.Command, args []string) error {
	author, name, err := parseExtensionRef(args[0])
	if err != nil {
		return err
	}
	data, filename, err := NewHTTPClient(GetConfig()).Download(extensionPath(author, name, "download"))
	if err != nil {
		return err
	}
	target := outputFile
	if target == "" {
		target = filepath.Base(filename)
		if filename == "" || target == "." || target == "/" {
			target = name + "-latest.zip"
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("unable to write %s: %w", target, err)
	}
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]any{"result": 1, "file": target, "size": len(data)})
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", target, len(data))
	return nil
}

func init() {
	rootCmd.AddCommand(publishCmd, listCmd, searchCmd, categoriesCmd, getCmd, downloadCmd)

	for _, c := range []*cobra.Command{listCmd, searchCmd} {
		c.Flags().IntVarP(&listPage, "page", "p", 0, "Page number")
		c.Flags().IntVarP(&listLimit, "limit", "l", 0, "Extensions per page")
	}
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Category id")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file")
}
