package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cluster"}
	cmd.AddCommand(clusterProposeCmd())
	cmd.AddCommand(clusterShowCmd())
	return cmd
}

func clusterProposeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "propose [target] [address] [confidence]",
		Short: "propose addr as a member of target's wallet cluster",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			_, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			target, err := parseAddress(args[0])
			if err != nil {
				fatalf("target: %v", err)
			}
			addr, err := parseAddress(args[1])
			if err != nil {
				fatalf("address: %v", err)
			}
			confidence, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				fatalf("confidence: %v", err)
			}

			cluster := core.NewWalletClusterer(st, nil)
			id, err := cluster.Propose(target, addr, confidence)
			if err != nil {
				fatalf("propose: %v", err)
			}
			fmt.Println(id)
		},
	}
}

func clusterShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [address]",
		Short: "list the members of an address's wallet cluster",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			addr, err := parseAddress(args[0])
			if err != nil {
				fatalf("address: %v", err)
			}
			cluster := core.NewWalletClusterer(st, nil)
			for _, m := range cluster.Members(addr) {
				fmt.Println(m)
			}
		},
	}
}
