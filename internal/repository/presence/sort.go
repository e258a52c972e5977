package presence

import (
	"cmp"

	"golang.org/x/exp/slices"
)

// SortByJoinOrder orders participants by JoinedAt, then ConnID for ties.
func SortByJoinOrder(participants []Participant) {
	slices.SortFunc(participants, func(a, b Participant) int {
		if c := cmp.Compare(a.JoinedAt, b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ConnID, b.ConnID)
	})
}
