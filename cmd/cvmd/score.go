package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [target] [viewer]",
		Short: "compute the HAT v2 score for target as seen by viewer",
		Args:  cobra.ExactArgs(2),
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
			viewer, err := parseAddress(args[1])
			if err != nil {
				fatalf("viewer: %v", err)
			}

			graph, err := core.NewTrustGraph(st, nil)
			if err != nil {
				fatalf("load trust graph: %v", err)
			}
			cluster := core.NewWalletClusterer(st, nil)
			scorer := core.NewHATScorer(graph, cluster)

			score := scorer.Score(target, viewer, core.BehaviorMetrics{Address: target}, core.StakeInfo{Address: target}, core.TemporalMetrics{Address: target})
			out, _ := json.MarshalIndent(score, "", "  ")
			fmt.Println(string(out))
		},
	}
	return cmd
}

func parseAddress(s string) (core.Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return core.Address{}, err
	}
	if len(raw) != 20 {
		return core.Address{}, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	var a core.Address
	copy(a[:], raw)
	return a, nil
}

func decodeHex(s string) ([]byte, error) { return hex.DecodeString(s) }

func parseHash(s string) (core.Hash256, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return core.Hash256{}, err
	}
	if len(raw) != 32 {
		return core.Hash256{}, fmt.Errorf("hash must be 32 bytes, got %d", len(raw))
	}
	var h core.Hash256
	copy(h[:], raw)
	return h, nil
}
