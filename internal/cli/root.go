// Package cli implements the memory-engine CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/config"
	"github.com/calyx-ai/memory-engine/internal/store"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memory-engine",
	Short: "Memory ingestion, indexing, and retrieval engine",
	Long:  "Stores conversational turns from connected apps, files them into a navigable taxonomy, answers queries against the store, and propagates high-value insights between apps.",
}

func init() {
	godotenv.Load()
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMENGINE_DB or ~/.memory-engine/engine.db)")
}

func getConfig() *config.Config {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getConfig().DBPath)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
