package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calyx-ai/memory-engine/internal/config"
)

func init() {
	apps := &cobra.Command{
		Use:   "apps",
		Short: "Manage the tenant app registry",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered apps",
		Run:   runAppsList,
	}

	sync := &cobra.Command{
		Use:   "sync [registry.yml]",
		Short: "Sync apps from the YAML registry",
		Run:   runAppsSync,
	}

	apps.AddCommand(list, sync)
	RootCmd.AddCommand(apps)
}

func runAppsList(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	out, err := s.ListApps(cmd.Context())
	if err != nil {
		exitErr("list apps", err)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func runAppsSync(cmd *cobra.Command, args []string) {
	path := getConfig().RegistryPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		exitErr("sync apps", fmt.Errorf("no registry path (arg or $MEMENGINE_APPS)"))
	}

	apps, err := config.LoadRegistry(path)
	if err != nil {
		exitErr("load registry", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.SyncApps(cmd.Context(), apps)
	if err != nil {
		exitErr("sync apps", err)
	}

	fmt.Printf("{\"synced\": %d}\n", n)
}
