package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [tx_hash] [sender] [self_reported_score]",
		Short: "open a validator-consensus session for a transaction",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			txHash, err := parseHash(args[0])
			if err != nil {
				fatalf("tx_hash: %v", err)
			}
			sender, err := parseAddress(args[1])
			if err != nil {
				fatalf("sender: %v", err)
			}
			score := 0
			fmt.Sscanf(args[2], "%d", &score)

			engine, err := core.NewConsensusEngine(st, nil)
			if err != nil {
				fatalf("load consensus engine: %v", err)
			}
			opened := time.Now().UTC()
			nonce := core.DeriveChallengeNonce(txHash, sender, opened)
			req := core.ValidationRequest{
				TxHash:            txHash,
				Sender:            sender,
				SelfReportedScore: score,
				ChallengeNonce:    nonce,
				Timestamp:         opened,
			}
			timeoutSec := 10
			if cfg.Consensus.ValidationTimeoutSeconds > 0 {
				timeoutSec = cfg.Consensus.ValidationTimeoutSeconds
			}
			engine.OpenSession(req, time.Now().UTC().Add(time.Duration(timeoutSec)*time.Second))
			fmt.Println("session opened")
		},
	}
}
