package game

import "slices"

// ResolveElimination counts the round's votes and decides who is out.
// Only votes cast by alive voters for alive targets count; abstainers are
// simply absent. The single target with strictly the most votes is
// eliminated. Any tie for the maximum, including nobody voting at all,
// eliminates no one: that is the tie policy, not a fallback.
func ResolveElimination(alive []string, votes map[string]string) (eliminated string, counts map[string]int, ok bool) {
	counts = make(map[string]int)
	for voter, target := range votes {
		if !slices.Contains(alive, voter) || !slices.Contains(alive, target) {
			continue
		}
		counts[target]++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return "", counts, false
	}

	leaders := 0
	for target, n := range counts {
		if n == max {
			leaders++
			eliminated = target
		}
	}
	if leaders != 1 {
		return "", counts, false
	}
	return eliminated, counts, true
}
