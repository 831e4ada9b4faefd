package queue

import "time"

// Matching band parameters. The acceptable rating distance widens with wait
// time so outliers are eventually matched.
const (
	InitialRange   = 100
	RangeIncrement = 50 // per full minute waited
	MaxRange       = 400

	MaxWaitTime       = 10 * time.Minute
	StaleMatchedAfter = 2 * MaxWaitTime
)

// AllowedRange computes the acceptable rating distance for a player that has
// waited the given duration.
func AllowedRange(wait time.Duration) int {
	if wait < 0 {
		wait = 0
	}
	r := InitialRange + RangeIncrement*int(wait/time.Minute)
	if r > MaxRange {
		r = MaxRange
	}
	return r
}

// Pair is two queue items matched within the current band.
type Pair struct {
	A, B Item
}

// PairWaiting scans waiting entries in queue order and pairs each with the
// first opponent inside the band. First-fit, not best-fit: ties go to queue
// order, not closest rating. The band for a candidate pair is computed from
// the longer-waiting of the two players. A claimed set prevents double-pairing
// a user inside a single pass; exclusion across passes comes from the matched
// status.
func PairWaiting(items []Item, now time.Time) []Pair {
	claimed := make(map[string]bool)
	var pairs []Pair
	for i := range items {
		p := items[i]
		if p.Entry.Status != StatusWaiting || claimed[p.Entry.UserID] {
			continue
		}
		for j := range items {
			if i == j {
				continue
			}
			q := items[j]
			if q.Entry.Status != StatusWaiting || claimed[q.Entry.UserID] || q.Entry.UserID == p.Entry.UserID {
				continue
			}
			longest := now.Sub(p.Entry.JoinedAt)
			if other := now.Sub(q.Entry.JoinedAt); other > longest {
				longest = other
			}
			if diff := absInt(p.Entry.Rating - q.Entry.Rating); diff <= AllowedRange(longest) {
				claimed[p.Entry.UserID] = true
				claimed[q.Entry.UserID] = true
				pairs = append(pairs, Pair{A: p, B: q})
				break
			}
		}
	}
	return pairs
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
