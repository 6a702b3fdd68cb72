package state

import "strconv"

// Storage keys. Single-valued configuration and accounting keys plus
// the per-policy and per-flight composite keys. Each key has exactly
// one owning component: Settings owns the configuration keys, the
// PolicyLedger owns the counter and policy records, the PoolAccountant
// owns the balance, and the IndexMaintainer owns both index keys.
const (
	keyAdmin          = "admin"
	keyAsset          = "asset"
	keyTreasury       = "treasury"
	keyPoolBalance    = "pool_balance"
	keyPolicyCounter  = "policy_counter"
	keyActivePolicies = "active_policies"
)

func policyKey(id uint64) string {
	return "policy:" + strconv.FormatUint(id, 10)
}

func flightKey(flightID string) string {
	return "flight_policies:" + flightID
}
