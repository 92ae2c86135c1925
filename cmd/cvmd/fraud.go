package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func fraudCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "fraud"}
	cmd.AddCommand(fraudRecordCmd())
	cmd.AddCommand(fraudListCmd())
	return cmd
}

func fraudRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record [tx_hash] [fraudster] [claimed] [actual] [stake] [height]",
		Short: "record a DAO-confirmed fraud outcome",
		Args:  cobra.ExactArgs(6),
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
			fraudster, err := parseAddress(args[1])
			if err != nil {
				fatalf("fraudster: %v", err)
			}
			claimed, _ := strconv.Atoi(args[2])
			actual, _ := strconv.Atoi(args[3])
			stake, _ := strconv.ParseUint(args[4], 10, 64)
			height, _ := strconv.ParseUint(args[5], 10, 64)

			cluster := core.NewWalletClusterer(st, nil)
			recorder, err := core.NewFraudRecorder(st, cluster)
			if err != nil {
				fatalf("load fraud recorder: %v", err)
			}
			record, err := recorder.Record(txHash, fraudster, claimed, actual, stake, height)
			if err != nil {
				fatalf("record: %v", err)
			}
			fmt.Printf("penalty=%d slash=%d\n", record.ReputationPenalty, record.BondSlashed)
		},
	}
}

func fraudListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [address]",
		Short: "list fraud records naming address as the fraudster",
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
			recorder, err := core.NewFraudRecorder(st, cluster)
			if err != nil {
				fatalf("load fraud recorder: %v", err)
			}
			for _, f := range recorder.ForAddress(addr) {
				fmt.Printf("tx=%s claimed=%d actual=%d penalty=%d slash=%d\n", f.TxHash, f.Claimed, f.Actual, f.ReputationPenalty, f.BondSlashed)
			}
		},
	}
}
