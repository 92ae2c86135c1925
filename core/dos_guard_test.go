package core

import (
	"testing"
	"time"
)

func TestAllowWithinLimitSucceeds(t *testing.T) {
	g := NewDoSGuard()
	for i := 0; i < 20; i++ {
		if err := g.Allow(addr(1), "rpc", RPCWindow, 0, 20); err != nil {
			t.Fatalf("Allow failed within the tier-0 limit at request %d: %v", i, err)
		}
	}
}

func TestAllowExceedingLimitBansAfterThreshold(t *testing.T) {
	g := NewDoSGuard()
	var lastErr error
	for i := 0; i < 21*ViolationsToBan; i++ {
		lastErr = g.Allow(addr(1), "rpc", RPCWindow, 0, 20)
	}
	if lastErr == nil {
		t.Fatalf("expected rate-limit violations to eventually ban the address")
	}
	if !g.IsBanned(addr(1)) {
		t.Fatalf("expected address to be banned after %d violations", ViolationsToBan)
	}
	if g.Violations(addr(1)) < ViolationsToBan {
		t.Fatalf("Violations() = %d, want >= %d", g.Violations(addr(1)), ViolationsToBan)
	}
}

func TestAllowRejectsBannedAddress(t *testing.T) {
	g := NewDoSGuard()
	fixed := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return fixed }

	for i := 0; i < 21*ViolationsToBan; i++ {
		g.Allow(addr(2), "tx", TxWindow, 0, 20)
	}
	if !g.IsBanned(addr(2)) {
		t.Fatalf("expected address to be banned")
	}
	if err := g.Allow(addr(2), "tx", TxWindow, 100, 1000); err != ErrBanned {
		t.Fatalf("Allow on a banned address = %v, want ErrBanned", err)
	}
}

func TestHigherReputationGetsHigherLimit(t *testing.T) {
	low := limitForReputation(0, 20)
	high := limitForReputation(95, 20)
	if high <= low {
		t.Fatalf("expected tier-90 limit (%d) to exceed tier-0 limit (%d)", high, low)
	}
}

func TestScreenBytecodeFlagsUngatedSelfDestruct(t *testing.T) {
	code := []byte{opPUSH1, 0x01, opSELFDESTRUCT}
	risk := ScreenBytecode(code)
	if risk.SelfDestructGated {
		t.Fatalf("expected SelfDestructGated=false for an ungated SELFDESTRUCT")
	}
	if risk.Score < 0.45 {
		t.Fatalf("Score = %v, want >= 0.45 for an ungated SELFDESTRUCT", risk.Score)
	}
}

func TestScreenBytecodeFlagsReentrancyShape(t *testing.T) {
	code := []byte{opCALL, opPUSH1, 0x00, opSSTORE}
	risk := ScreenBytecode(code)
	if !risk.ReentrancyShape {
		t.Fatalf("expected ReentrancyShape=true for CALL immediately followed by SSTORE")
	}
}

func TestScreenBytecodeCleanCodeIsLowRisk(t *testing.T) {
	code := []byte{opPUSH1, 0x01, opPUSH1, 0x02}
	risk := ScreenBytecode(code)
	if risk.Score >= BytecodeRiskBlockThreshold {
		t.Fatalf("Score = %v, expected well below the block threshold %v for clean code", risk.Score, BytecodeRiskBlockThreshold)
	}
}
