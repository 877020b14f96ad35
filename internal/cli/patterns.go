package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/logger"
	"github.com/calyx-ai/memory-engine/internal/propagation"
)

func init() {
	patterns := &cobra.Command{
		Use:   "patterns [topic]",
		Short: "Request stored patterns for a topic",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPatterns,
	}
	patterns.Flags().StringP("app", "a", "", "Requesting app id (required)")
	patterns.Flags().IntP("limit", "l", 10, "Max matches")
	patterns.MarkFlagRequired("app")
	RootCmd.AddCommand(patterns)

	pollinate := &cobra.Command{
		Use:   "pollinate [concept]",
		Short: "Cross-pollinate a concept through domain bridges",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPollinate,
	}
	pollinate.Flags().StringP("app", "a", "", "Requesting app id (required)")
	pollinate.MarkFlagRequired("app")
	RootCmd.AddCommand(pollinate)
}

func runPatterns(cmd *cobra.Command, args []string) {
	appID, _ := cmd.Flags().GetString("app")
	limit, _ := cmd.Flags().GetInt("limit")
	topic := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	matches, err := propagation.New(s, logger.New()).RequestPatterns(cmd.Context(), appID, topic, limit)
	if err != nil {
		exitErr("patterns", err)
	}

	b, _ := json.MarshalIndent(matches, "", "  ")
	fmt.Println(string(b))
}

func runPollinate(cmd *cobra.Command, args []string) {
	appID, _ := cmd.Flags().GetString("app")
	concept := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := propagation.New(s, logger.New()).CrossPollinate(cmd.Context(), appID, concept)
	if err != nil {
		exitErr("pollinate", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
