package planner

import (
	"fmt"
	"sort"
	"strings"
)

// ParseTiers converts tier names into Tiers, preserving order and dropping
// duplicates. An empty or unknown name is an error.
func ParseTiers(names []string) ([]Tier, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no tiers requested")
	}
	seen := make(map[Tier]bool, len(names))
	out := make([]Tier, 0, len(names))
	for _, n := range names {
		t := Tier(strings.ToLower(strings.TrimSpace(n)))
		if t.rank() == len(TierOrder) {
			return nil, fmt.Errorf("unknown tier %q", n)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Ordered returns a copy of tiers sorted into TierOrder (high, medium, low).
func Ordered(tiers []Tier) []Tier {
	out := append([]Tier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].rank() < out[j].rank() })
	return out
}

// Contains reports whether t is in tiers.
func Contains(tiers []Tier, t Tier) bool {
	for _, x := range tiers {
		if x == t {
			return true
		}
	}
	return false
}
