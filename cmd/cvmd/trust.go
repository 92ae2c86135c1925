package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func trustCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "trust"}
	cmd.AddCommand(trustVoteCmd())
	cmd.AddCommand(trustShowCmd())
	return cmd
}

func trustVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote [voter] [target] [weight] [bond]",
		Short: "record a bonded trust vote",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			_, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			voter, err := parseAddress(args[0])
			if err != nil {
				fatalf("voter: %v", err)
			}
			target, err := parseAddress(args[1])
			if err != nil {
				fatalf("target: %v", err)
			}
			weight, err := strconv.Atoi(args[2])
			if err != nil {
				fatalf("weight: %v", err)
			}
			bond, err := strconv.ParseUint(args[3], 10, 64)
			if err != nil {
				fatalf("bond: %v", err)
			}

			graph, err := core.NewTrustGraph(st, nil)
			if err != nil {
				fatalf("load trust graph: %v", err)
			}
			vote := core.BondedVote{Voter: voter, Target: target, Value: int8(weight), Bond: bond, Timestamp: time.Now().UTC()}
			if err := graph.RecordBondedVote(vote); err != nil {
				fatalf("record vote: %v", err)
			}
			fmt.Println("ok")
		},
	}
}

func trustShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [address]",
		Short: "show incoming/outgoing trust edges for an address",
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
			graph, err := core.NewTrustGraph(st, nil)
			if err != nil {
				fatalf("load trust graph: %v", err)
			}
			for _, e := range graph.Outgoing(addr) {
				fmt.Printf("out -> %s weight=%d bond=%d\n", e.To, e.Weight, e.BondAmount)
			}
			for _, e := range graph.Incoming(addr) {
				fmt.Printf("in  <- %s weight=%d bond=%d\n", e.From, e.Weight, e.BondAmount)
			}
		},
	}
}
