package engine

import (
	"sort"
	"strconv"
	"strings"
)

// Resolve tallies cell ownership in an owner snapshot and returns the standings,
// strictly descending by score. Equal scores are kept as ties, ordered by
// player slot (P2 before P10); the first entry is the winner.
func Resolve(owners [][]PlayerID) []Standing {
	counts := make(map[PlayerID]int)
	for _, row := range owners {
		for _, id := range row {
			if id != NoOwner {
				counts[id]++
			}
		}
	}

	standings := make([]Standing, 0, len(counts))
	for id, n := range counts {
		standings = append(standings, Standing{PlayerID: id, Score: n})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return LessPlayerID(standings[i].PlayerID, standings[j].PlayerID)
	})
	return standings
}

// Winner returns the first standing, if any.
func Winner(standings []Standing) (Standing, bool) {
	if len(standings) == 0 {
		return Standing{}, false
	}
	return standings[0], true
}

// Tied returns the ids of the leading players when more than one of them
// shares the top score, and nil when the lead is clear.
func Tied(standings []Standing) []PlayerID {
	if len(standings) < 2 || standings[1].Score != standings[0].Score {
		return nil
	}
	var ids []PlayerID
	for _, s := range standings {
		if s.Score != standings[0].Score {
			break
		}
		ids = append(ids, s.PlayerID)
	}
	return ids
}

// LessPlayerID orders ids by their numeric slot suffix, falling back to a
// plain string comparison for ids that do not follow the "P<n>" form.
func LessPlayerID(a, b PlayerID) bool {
	na, okA := slotNumber(a)
	nb, okB := slotNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	return a < b
}

func slotNumber(id PlayerID) (int, bool) {
	s := string(id)
	if !strings.HasPrefix(s, "P") {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
