package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/logger"
	"github.com/calyx-ai/memory-engine/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the memory store",
		Long:  "Analyze the query, walk the taxonomy, and return ranked memory entries with refinement suggestions.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("context", "c", "", "Optional intent context")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	intentContext, _ := cmd.Flags().GetString("context")
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := retrieval.New(s, logger.New()).Search(cmd.Context(), query, intentContext)
	if err != nil {
		exitErr("search", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
