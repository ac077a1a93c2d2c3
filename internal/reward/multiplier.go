// Package reward accrues VIBE for canonical heartbeats and keeps the
// per-wallet ledger. All arithmetic is integer milli-VIBE with permille
// multipliers, so every node computes the same balances.
package reward

import "github.com/vibemesh/vibemesh/pkg/types"

// multiplierRule is one hardware bonus. Rules compound multiplicatively,
// each expressed in permille (1000 = x1.0).
type multiplierRule struct {
	name     string
	permille uint64
	applies  func(types.HardwareSnapshot) bool
}

var multiplierRules = []multiplierRule{
	{
		name:     "gpu",
		permille: 2000,
		applies:  func(hw types.HardwareSnapshot) bool { return hw.GPUAvailable },
	},
	{
		name:     "high-cpu",
		permille: 1500,
		applies:  func(hw types.HardwareSnapshot) bool { return hw.CPUCores > 16 },
	},
	{
		name:     "high-ram",
		permille: 1300,
		applies:  func(hw types.HardwareSnapshot) bool { return hw.RAMMB > 32768 },
	},
}

// MultiplierPermille returns the combined hardware multiplier for hw, in
// permille. A snapshot matching no rules yields 1000.
func MultiplierPermille(hw types.HardwareSnapshot) uint64 {
	m := uint64(1000)
	for _, rule := range multiplierRules {
		if rule.applies(hw) {
			m = m * rule.permille / 1000
		}
	}
	return m
}

// RewardFor computes the milli-VIBE earned by one canonical heartbeat
// with the given base rate and hardware.
func RewardFor(baseMilli types.Amount, hw types.HardwareSnapshot) types.Amount {
	return types.Amount(uint64(baseMilli) * MultiplierPermille(hw) / 1000)
}
