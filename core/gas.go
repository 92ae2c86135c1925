package core

// Gas formulas (§4.5 step 4, §8 properties 3-4): pure integer arithmetic,
// never floating, so the result is byte-identical across re-evaluations and
// architectures. Grounded on the teacher's gas_table.go convention of
// expressing gas economics as small top-level integer functions.

// GasDiscount returns min(base*rep*5/1000, base/2), the reputation-scaled
// discount off base gas cost.
func GasDiscount(base uint64, rep int) uint64 {
	if rep < 0 {
		rep = 0
	}
	scaled := base * uint64(rep) * 5 / 1000
	half := base / 2
	if scaled > half {
		return half
	}
	return scaled
}

// FreeGasEligible reports whether rep clears the free-gas threshold (§4.5).
func FreeGasEligible(rep int) bool { return rep >= 80 }

// FreeGasAllowance returns base*(20+rep-80)/20 when rep >= 80, else 0.
func FreeGasAllowance(base uint64, rep int) uint64 {
	if !FreeGasEligible(rep) {
		return 0
	}
	numerator := int64(20 + rep - 80)
	if numerator < 0 {
		return 0
	}
	return base * uint64(numerator) / 20
}
