package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tempograph/tempograph/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid search against the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("group", "default", "group ID to search")
	searchCmd.Flags().Int("limit", types.DefaultSearchLimit, "maximum results per kind")
	searchCmd.Flags().Bool("include-invalid", false, "include superseded facts")
	searchCmd.Flags().String("as-of", "", "only facts live at this RFC 3339 instant")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	client, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	groupID, _ := cmd.Flags().GetString("group")
	limit, _ := cmd.Flags().GetInt("limit")
	includeInvalid, _ := cmd.Flags().GetBool("include-invalid")

	filters := &types.SearchFilters{IncludeInvalid: includeInvalid}
	if raw, _ := cmd.Flags().GetString("as-of"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return err
		}
		filters.AsOf = &at
	}
	searchCfg := types.DefaultSearchConfig()
	if limit > 0 {
		searchCfg.Limit = limit
	}

	query := strings.Join(args, " ")
	results, err := client.Search(cmd.Context(), query, groupID, searchCfg, filters)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
