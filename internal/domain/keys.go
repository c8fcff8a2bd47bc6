package domain

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// PositionKey is an opaque, stable identifier derived from
// (account, instrument, currency, direction) by a deterministic
// non-cryptographic hash (spec.md §3). Direction is part of the key: a
// given (account, instrument, currency) has up to two position keys, one
// per direction.
type PositionKey string

// DerivePositionKey computes the stable key for (account, instrument,
// currency, direction). The tuple is lower-cased and pipe-joined before
// hashing so that callers don't have to agree on case, and xxhash (already
// a transitive dependency of the pack's Kafka/Redis clients, and used
// directly for partition-key hashing in comparable code) gives a cheap,
// deterministic, non-cryptographic digest.
func DerivePositionKey(account, instrument, currency string, direction Direction) PositionKey {
	canon := strings.ToLower(strings.Join([]string{account, instrument, currency, string(direction)}, "|"))
	sum := xxhash.Sum64String(canon)
	return PositionKey(fmt.Sprintf("pk_%016x", sum))
}

// Opposite returns the other direction — used when a direction change
// splits a trade across the close-leg (current key) and open-leg
// (opposite-direction key).
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}
