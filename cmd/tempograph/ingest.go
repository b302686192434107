package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tempograph/tempograph/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest episodes from a JSON file or stdin",
	Long: `Reads a JSON array of episodes and ingests them as one batch.
Each episode needs "name" and "content"; "source", "reference", and
"uuid" are optional. With no file argument, episodes are read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("group", "default", "group ID to ingest into")
	ingestCmd.Flags().Bool("communities", false, "rebuild communities after ingestion")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	input := os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	var episodes []types.RawEpisode
	if err := json.NewDecoder(input).Decode(&episodes); err != nil {
		return fmt.Errorf("decode episodes: %w", err)
	}
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes to ingest")
	}

	client, err := buildClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	groupID, _ := cmd.Flags().GetString("group")
	start := time.Now()
	results, err := client.IngestBatch(cmd.Context(), episodes, groupID)
	if err != nil {
		return err
	}

	created, merged, invalidated := 0, 0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		created += len(r.CreatedNodeIDs)
		merged += len(r.MergedNodeIDs)
		invalidated += len(r.InvalidatedEdgeIDs)
	}
	fmt.Printf("ingested %d episodes in %s: %d nodes created, %d merged, %d edges invalidated\n",
		len(results), time.Since(start).Round(time.Millisecond), created, merged, invalidated)

	if rebuild, _ := cmd.Flags().GetBool("communities"); rebuild {
		communities, err := client.UpdateCommunities(cmd.Context(), groupID)
		if err != nil {
			return err
		}
		fmt.Printf("rebuilt %d communities\n", len(communities))
	}
	return nil
}
