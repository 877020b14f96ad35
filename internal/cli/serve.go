package cli

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/config"
	"github.com/calyx-ai/memory-engine/internal/ingest"
	"github.com/calyx-ai/memory-engine/internal/logger"
	"github.com/calyx-ai/memory-engine/internal/propagation"
	"github.com/calyx-ai/memory-engine/internal/retrieval"
	"github.com/calyx-ai/memory-engine/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serve the ingest, search, and propagate operations over HTTP.",
		Run:   runServe,
	}

	cmd.Flags().StringP("addr", "a", "", "Listen address (default: $MEMENGINE_ADDR or :8807)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	log := logger.New()
	cfg := getConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.ListenAddr = addr
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if cfg.RegistryPath != "" {
		apps, err := config.LoadRegistry(cfg.RegistryPath)
		if err != nil {
			exitErr("load apps registry", err)
		}
		n, err := s.SyncApps(cmd.Context(), apps)
		if err != nil {
			exitErr("sync apps", err)
		}
		log.Info("apps registry synced", "apps", n)
	}

	srv := server.New(
		ingest.New(s, log),
		retrieval.New(s, log),
		propagation.New(s, log),
		log,
	)

	log.Info("listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Handler()); err != nil {
		exitErr("serve", err)
	}
}
