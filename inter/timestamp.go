// Package inter defines the bridge core's persisted data structures: validator
// records, consensus state, proposals, bridge transactions, circuit breakers,
// slashing/reward records and atomic swaps.
//
// Every structure in this package is RLP-serializable. Entities never hold
// pointers to each other; cross references are primitive ids (addresses,
// nonces, chain ids) that are re-resolved through the ledger on each access.
package inter

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
)

// Timestamp is a host ledger time in unix nanoseconds.
type Timestamp uint64

// MaxTimestamp is the latest representable time.
const MaxTimestamp = Timestamp(^uint64(0))

// FromUnix converts unix seconds into a Timestamp.
func FromUnix(t int64) Timestamp {
	return Timestamp(t * int64(time.Second))
}

// FromDuration converts a time.Duration into a Timestamp interval.
func FromDuration(d time.Duration) Timestamp {
	return Timestamp(d)
}

// Unix returns t as unix seconds.
func (t Timestamp) Unix() int64 {
	return int64(t) / int64(time.Second)
}

// Time returns t as a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// Duration returns t interpreted as an interval.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t)
}

// Bytes returns the big-endian encoding of t.
func (t Timestamp) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(t))
}

// Add returns t+d, saturating at MaxTimestamp.
func (t Timestamp) Add(d Timestamp) Timestamp {
	if t > MaxTimestamp-d {
		return MaxTimestamp
	}
	return t + d
}

// Since returns t-earlier, or 0 if earlier is after t.
func (t Timestamp) Since(earlier Timestamp) Timestamp {
	if earlier >= t {
		return 0
	}
	return t - earlier
}

func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}
