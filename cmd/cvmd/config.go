package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/pkg/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config"}
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "print the resolved node configuration as YAML",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				fatalf("load config: %v", err)
			}
			out, err := cfg.YAML()
			if err != nil {
				fatalf("render config: %v", err)
			}
			fmt.Print(string(out))
		},
	}
}
