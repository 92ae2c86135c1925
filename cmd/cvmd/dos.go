package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func dosCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "dos"}
	cmd.AddCommand(dosCheckCmd())
	cmd.AddCommand(dosScreenCmd())
	return cmd
}

// process-lifetime guard; rate-limit state is not consensus-critical so it
// need not be wired through openStore's persistence layer.
var guard = core.NewDoSGuard()

func dosCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [address] [kind] [reputation]",
		Short: "check whether a request from address is allowed under the DoS guard",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			addr, err := parseAddress(args[0])
			if err != nil {
				fatalf("address: %v", err)
			}
			rep, _ := strconv.Atoi(args[2])

			var window time.Duration
			var base int
			switch args[1] {
			case "tx":
				window, base = core.TxWindow, 100
			case "deployment":
				window, base = core.DeploymentWindow, 10
			case "rpc":
				window, base = core.RPCWindow, 600
			case "p2p":
				window, base = core.P2PWindow, 600
			default:
				fatalf("unknown kind %q", args[1])
			}
			if err := guard.Allow(addr, args[1], window, rep, base); err != nil {
				fatalf("denied: %v", err)
			}
			fmt.Println("allowed")
		},
	}
}

func dosScreenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screen [bytecode-hex]",
		Short: "screen deployment bytecode for dangerous patterns",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			code, err := decodeHex(args[0])
			if err != nil {
				fatalf("bytecode: %v", err)
			}
			risk := core.ScreenBytecode(code)
			fmt.Printf("score=%.4f reentrancy=%v ungated_selfdestruct=%v ungated_backjump=%v\n",
				risk.Score, risk.ReentrancyShape, !risk.SelfDestructGated, risk.UngatedBackJump)
			if risk.Score >= core.BytecodeRiskBlockThreshold {
				fatalf("blocked: risk score exceeds threshold")
			}
		},
	}
}
