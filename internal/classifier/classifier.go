// Package classifier implements C3: decide hotpath vs coldpath per trade
// (spec.md §4.3).
package classifier

import "time"

// Classification is the classifier's output.
type Classification string

const (
	CurrentDated Classification = "CURRENT_DATED"
	ForwardDated Classification = "FORWARD_DATED"
	BackDated    Classification = "BACKDATED"
)

// Classify decides the routing for a trade with the given effective date.
// hasSnapshot/lastEventDate describe the latest snapshot, if any; now is
// the classification clock (injectable for tests).
//
// - No snapshot ⇒ CURRENT_DATED regardless of effective date.
// - effectiveDate >= lastEventDate ⇒ CURRENT_DATED if effectiveDate is
//   today, else FORWARD_DATED.
// - effectiveDate < lastEventDate ⇒ BACKDATED.
func Classify(hasSnapshot bool, lastEventDate time.Time, effectiveDate, now time.Time) Classification {
	if !hasSnapshot {
		return CurrentDated
	}
	if !effectiveDate.Before(lastEventDate) {
		if isSameDay(effectiveDate, now) {
			return CurrentDated
		}
		return ForwardDated
	}
	return BackDated
}

func isSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsHotpath reports whether c should be applied on the hotpath. Only
// BACKDATED trades take the coldpath (spec.md §4.3).
func IsHotpath(c Classification) bool {
	return c == CurrentDated || c == ForwardDated
}
