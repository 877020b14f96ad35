package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/ingest"
	"github.com/calyx-ai/memory-engine/internal/logger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a thread descriptor",
		Long:  "Ingest a JSON thread descriptor with nested turns, from a file or stdin. Re-ingesting the same payload is idempotent.",
		Run:   runIngest,
	}

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	var data []byte
	var err error
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var d ingest.ThreadDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		exitErr("parse descriptor", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := ingest.New(s, logger.New()).Ingest(cmd.Context(), d)
	if err != nil {
		exitErr("ingest", err)
	}

	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}
