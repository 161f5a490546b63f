package ledger

import (
	"math"

	"github.com/zkpayroll/go-payroll-settlement/constants"
)

// Extend returns the new expiry of a record live until liveUntil, evaluated
// at sequence now. The expiry is raised to now+Target only when the remaining
// lifetime is below Threshold, and it never decreases.
func Extend(liveUntil, now uint32, policy constants.TTLPolicy) uint32 {
	if liveUntil >= now && liveUntil-now >= policy.Threshold {
		return liveUntil
	}
	target := now + policy.Target
	if target < now {
		target = math.MaxUint32
	}
	if target < liveUntil {
		return liveUntil
	}
	return target
}

// Expired reports whether a record live until liveUntil is gone at now.
func Expired(liveUntil, now uint32) bool {
	return liveUntil < now
}
