package models

import "time"

// dedupLatest keeps one record per natural key. The survivor is the record
// with the latest tie-break value; a null tie-break loses to any non-null
// one. On an exact tie the later record wins, mirroring the last-write-wins
// refresh of the staged layer, so the outcome is the same however often the
// batch is replayed.
func dedupLatest[T any](records []T, key func(*T) string, tieBreak func(*T) *time.Time) []T {
	index := make(map[string]int, len(records))
	out := make([]T, 0, len(records))
	for i := range records {
		k := key(&records[i])
		pos, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, records[i])
			continue
		}
		if tieBreakWins(tieBreak(&records[i]), tieBreak(&out[pos])) {
			out[pos] = records[i]
		}
	}
	return out
}

// tieBreakWins reports whether the challenger should replace the incumbent.
func tieBreakWins(challenger, incumbent *time.Time) bool {
	switch {
	case challenger == nil && incumbent == nil:
		return true
	case challenger == nil:
		return false
	case incumbent == nil:
		return true
	default:
		return !challenger.Before(*incumbent)
	}
}
