package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func disputeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "dispute"}
	cmd.AddCommand(disputeShowCmd())
	cmd.AddCommand(disputeResolveCmd())
	return cmd
}

func disputeShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [tx_hash]",
		Short: "print the dispute case opened for tx_hash, if any",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			txHash, err := parseHash(args[0])
			if err != nil {
				fatalf("tx_hash: %v", err)
			}
			engine, err := core.NewConsensusEngine(st, nil)
			if err != nil {
				fatalf("load consensus engine: %v", err)
			}
			dc, err := engine.Dispute(txHash)
			if err != nil {
				fatalf("load dispute: %v", err)
			}
			state := core.TxDisputed
			if dc.Resolved {
				state = core.TxRejected
				if dc.Approved {
					state = core.TxValidated
				}
			}
			fmt.Printf("state=%s resolved=%t approved=%t responses=%d\n", state, dc.Resolved, dc.Approved, len(dc.Responses))
		},
	}
}

func disputeResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [tx_hash] [approved]",
		Short: "close a dispute case per a DAO resolution vote",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			_, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			txHash, err := parseHash(args[0])
			if err != nil {
				fatalf("tx_hash: %v", err)
			}
			approved := args[1] == "true" || args[1] == "1"

			engine, err := core.NewConsensusEngine(st, nil)
			if err != nil {
				fatalf("load consensus engine: %v", err)
			}
			dc, err := engine.ResolveDispute(txHash, approved, time.Now())
			if err != nil {
				fatalf("resolve dispute: %v", err)
			}
			fmt.Printf("resolved tx=%s approved=%t state=%s\n", dc.DisputeID, dc.Approved, engine.TxState(txHash))
		},
	}
}
