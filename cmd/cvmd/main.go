package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cascoin/cvm/core"
	"github.com/cascoin/cvm/pkg/config"
)

var (
	storeDir     string
	storeBackend string
)

func main() {
	// bootstrap the audit logger early; fraud records are logged through
	// zap.L() regardless of which subcommand runs.
	if logger, err := zap.NewProduction(); err == nil {
		zap.ReplaceGlobals(logger)
		defer logger.Sync()
	}

	rootCmd := &cobra.Command{Use: "cvmd"}
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir", "", "override the store.db_path from config")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store-backend", "", "override the store.db_backend from config")

	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(trustCmd())
	rootCmd.AddCommand(clusterCmd())
	rootCmd.AddCommand(fraudCmd())
	rootCmd.AddCommand(dosCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(disputeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads the node config and opens the persistence layer, honoring
// any --store-dir/--store-backend overrides.
func openStore() (*config.Config, *core.Store, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	dir := cfg.Storage.DBPath
	if storeDir != "" {
		dir = storeDir
	}
	backend := cfg.Storage.DBBackend
	if storeBackend != "" {
		backend = storeBackend
	}
	st, err := core.NewStore("cvmd", dir, backend, nil)
	if err != nil {
		return nil, nil, err
	}
	core.InitStore(st)
	return cfg, st, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
