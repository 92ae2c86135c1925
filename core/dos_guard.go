package core

// DoS Guard (§2 component I, §4.4 "DoS / rate limiting"): tiered,
// reputation-scaled rate limiting with a violation/ban schedule, plus
// bytecode screening for dangerous opcode patterns. The rate-limiter
// windows are grounded on the teacher's network.go peer-scoring pattern;
// bytecode screening is grounded on original_source/src/cvm/bytecode_detector.cpp's
// opcode tables, reduced here to the structural checks §4.4 actually names
// (self-destruct without gate, call+sstore reentrancy shape, backward jumps
// without gas checks, exhaustion ratios) rather than its full EVM/CVM format
// detector.

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/vm"
)

// Rate-limit windows (§4.4).
const (
	TxWindow         = 60 * time.Second
	DeploymentWindow = 3600 * time.Second
	RPCWindow        = 60 * time.Second
	P2PWindow        = 60 * time.Second

	ViolationsToBan  = 10
	BaseBanSeconds   = 60
)

// tier thresholds by reputation (§4.4 "four tiers").
var tierThresholds = []struct {
	minRep int
	limit  int
}{
	{90, 1000},
	{70, 300},
	{50, 100},
	{0, 20},
}

// limitForReputation returns the request budget for the given reputation
// within window kind; the four static tiers scale multiplicatively with
// the per-kind base rate.
func limitForReputation(rep int, base int) int {
	for _, t := range tierThresholds {
		if rep >= t.minRep {
			return base * t.limit / tierThresholds[len(tierThresholds)-1].limit
		}
	}
	return base
}

type window struct {
	start time.Time
	count int
}

type counterKey struct {
	addr Address
	kind string
}

type banState struct {
	bannedUntil time.Time
	violations  int
}

// DoSGuard tracks per-address rate-limit windows and bans. Exclusive lock
// per §5.
type DoSGuard struct {
	mu       sync.Mutex
	windows  map[counterKey]*window
	bans     map[Address]*banState
	now      func() time.Time
}

// NewDoSGuard constructs an in-memory guard (rate-limit state is ephemeral
// per node, not consensus-critical, so it is never persisted).
func NewDoSGuard() *DoSGuard {
	return &DoSGuard{
		windows: make(map[counterKey]*window),
		bans:    make(map[Address]*banState),
		now:     time.Now,
	}
}

// Allow records one request of kind ("tx", "deployment", "rpc", "p2p") from
// addr with the given reputation and window size, returning an error if the
// address is banned or the tier limit is exceeded (§4.4).
func (g *DoSGuard) Allow(addr Address, kind string, windowSize time.Duration, rep int, baseLimit int) error {
	now := g.now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.bans[addr]; ok && now.Before(b.bannedUntil) {
		return ErrBanned
	}

	key := counterKey{addr: addr, kind: kind}
	w, ok := g.windows[key]
	if !ok || now.Sub(w.start) > windowSize {
		w = &window{start: now, count: 0}
		g.windows[key] = w
	}
	w.count++

	limit := limitForReputation(rep, baseLimit)
	if w.count > limit {
		g.recordViolation(addr, kind, now)
		return ErrRateLimited
	}
	return nil
}

// recordViolation accumulates a violation and bans the address once
// ViolationsToBan is reached, for BaseBanSeconds * violation_count (§4.4).
func (g *DoSGuard) recordViolation(addr Address, kind string, now time.Time) {
	b, ok := g.bans[addr]
	if !ok {
		b = &banState{}
		g.bans[addr] = b
	}
	b.violations++
	if b.violations >= ViolationsToBan {
		b.bannedUntil = now.Add(time.Duration(BaseBanSeconds*b.violations) * time.Second)
		DoSBans.WithLabelValues(kind).Inc()
	}
}

// IsBanned reports whether addr is currently banned.
func (g *DoSGuard) IsBanned(addr Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.bans[addr]
	return ok && g.now().UTC().Before(b.bannedUntil)
}

// Violations returns addr's accumulated violation count.
func (g *DoSGuard) Violations(addr Address) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.bans[addr]; ok {
		return b.violations
	}
	return 0
}

//---------------------------------------------------------------------
// Bytecode screening (§4.4 "Bytecode screening").
//---------------------------------------------------------------------

// EVM opcodes relevant to the structural checks below, taken from
// go-ethereum's core/vm opcode table rather than a hand-rolled one, per
// original_source/src/cvm/bytecode_detector.cpp's EVM_OPCODES reference.
const (
	opJUMP         = byte(vm.JUMP)
	opJUMPI        = byte(vm.JUMPI)
	opJUMPDEST     = byte(vm.JUMPDEST)
	opSSTORE       = byte(vm.SSTORE)
	opCALL         = byte(vm.CALL)
	opDELEGATECALL = byte(vm.DELEGATECALL)
	opSTATICCALL   = byte(vm.STATICCALL)
	opSELFDESTRUCT = byte(vm.SELFDESTRUCT)
	opPUSH1        = byte(vm.PUSH1)
	opPUSH32       = byte(vm.PUSH32)
)

// BytecodeRiskBlockThreshold: deployment is blocked at or above this risk
// score (§4.4: "can block deployment when >= 0.90").
const BytecodeRiskBlockThreshold = 0.90

// BytecodeRisk is the aggregate screening result.
type BytecodeRisk struct {
	Score            float64
	SelfDestructGated bool
	ReentrancyShape  bool
	UngatedBackJump  bool
	ExhaustionRatio  float64
}

// ScreenBytecode scans deployed EVM-style bytecode for the dangerous
// patterns §4.4 names and returns a combined risk score in [0,1].
func ScreenBytecode(code []byte) BytecodeRisk {
	var risk BytecodeRisk
	selfDestructUngated := hasUngatedSelfDestruct(code)
	reentrancy := hasReentrancyShape(code)
	backJump := hasUngatedBackwardJump(code)
	risk.ExhaustionRatio = exhaustionRatio(code)

	score := 0.0
	if selfDestructUngated {
		score += 0.45
	}
	if reentrancy {
		score += 0.35
		risk.ReentrancyShape = true
	}
	if backJump {
		score += 0.30
		risk.UngatedBackJump = true
	}
	score += 0.20 * risk.ExhaustionRatio

	risk.SelfDestructGated = !selfDestructUngated
	risk.Score = clamp01(score)
	return risk
}

// hasUngatedSelfDestruct reports SELFDESTRUCT reachable without a preceding
// conditional jump (JUMPI) gating it within the previous 8 bytes —
// the "self-destruct without gate" shape (§4.4).
func hasUngatedSelfDestruct(code []byte) bool {
	for i := 0; i < len(code); {
		op := code[i]
		if op == opSELFDESTRUCT {
			gated := false
			for j := i - 1; j >= 0 && j >= i-8; j-- {
				if code[j] == opJUMPI {
					gated = true
					break
				}
			}
			if !gated {
				return true
			}
		}
		i = nextInstruction(code, i, op)
	}
	return false
}

// hasReentrancyShape looks for a CALL, DELEGATECALL or STATICCALL followed
// within 32 bytes by an SSTORE; the storage slot is not inspected — the
// classic check-effects-interactions violation shape (§4.4 "call+sstore
// reentrancy shape").
func hasReentrancyShape(code []byte) bool {
	lastCall := -1
	for i := 0; i < len(code); {
		op := code[i]
		switch op {
		case opCALL, opDELEGATECALL, opSTATICCALL:
			lastCall = i
		case opSSTORE:
			if lastCall >= 0 && i-lastCall <= 32 {
				return true
			}
		}
		i = nextInstruction(code, i, op)
	}
	return false
}

// hasUngatedBackwardJump reports a JUMP that has some JUMPDEST earlier in the
// code and no JUMPI in the 64 bytes before it; the jump target itself is not
// resolved, and a missing gas check is approximated as no JUMPI gate. This is
// a shape consistent with an unbounded loop (§4.4 "backward jumps without
// gas checks").
func hasUngatedBackwardJump(code []byte) bool {
	jumpdests := map[int]bool{}
	for i := 0; i < len(code); {
		op := code[i]
		if op == opJUMPDEST {
			jumpdests[i] = true
		}
		i = nextInstruction(code, i, op)
	}
	for i := 0; i < len(code); {
		op := code[i]
		if op == opJUMP && i > 0 {
			// A crude backward-jump signal: a JUMP instruction appearing
			// after at least one JUMPDEST earlier in the stream with no
			// intervening JUMPI to bound iteration.
			sawDest, sawGate := false, false
			for d := range jumpdests {
				if d < i {
					sawDest = true
				}
			}
			for j := i - 1; j >= 0 && j >= i-64; j-- {
				if code[j] == opJUMPI {
					sawGate = true
					break
				}
			}
			if sawDest && !sawGate {
				return true
			}
		}
		i = nextInstruction(code, i, op)
	}
	return false
}

// exhaustionRatio estimates the fraction of the bytecode made up of jump
// instructions (JUMP and JUMPI) relative to total instructions, a rough proxy for
// deliberately crafted gas-exhaustion loops (§4.4 "exhaustion ratios").
func exhaustionRatio(code []byte) float64 {
	total, jumps := 0, 0
	for i := 0; i < len(code); {
		op := code[i]
		total++
		if op == opJUMP || op == opJUMPI {
			jumps++
		}
		i = nextInstruction(code, i, op)
	}
	if total == 0 {
		return 0
	}
	return float64(jumps) / float64(total)
}

// nextInstruction advances past op's immediate data (PUSH1..PUSH32 carry
// 1..32 bytes of operand).
func nextInstruction(code []byte, i int, op byte) int {
	if op >= opPUSH1 && op <= opPUSH32 {
		size := int(op-opPUSH1) + 1
		return i + 1 + size
	}
	return i + 1
}
