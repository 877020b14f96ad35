package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/logger"
	"github.com/calyx-ai/memory-engine/internal/model"
	"github.com/calyx-ai/memory-engine/internal/propagation"
)

func init() {
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Propagate an insight to other apps",
		Long:  "Read a JSON insight package from stdin or a file, score it against candidate targets, and persist pending communications for every target above the relevance threshold.",
		Run:   runPropagate,
	}

	cmd.Flags().StringP("source", "s", "", "Source app id (required)")
	cmd.Flags().StringSliceP("targets", "t", nil, "Explicit target app ids (default: auto-discover)")
	cmd.Flags().String("file", "", "Insight JSON file (default: stdin)")

	cmd.MarkFlagRequired("source")

	RootCmd.AddCommand(cmd)
}

func runPropagate(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")
	targets, _ := cmd.Flags().GetStringSlice("targets")
	file, _ := cmd.Flags().GetString("file")

	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read insight", err)
	}

	var insight model.InsightPackage
	if err := json.Unmarshal(data, &insight); err != nil {
		exitErr("parse insight", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	deliveries, err := propagation.New(s, logger.New()).Propagate(cmd.Context(), insight, source, targets)
	if err != nil {
		exitErr("propagate", err)
	}

	b, _ := json.MarshalIndent(deliveries, "", "  ")
	fmt.Println(string(b))
}
