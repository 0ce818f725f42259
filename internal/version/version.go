// Package version compares dotted CLI version strings.
package version

import (
	"strconv"
	"strings"
)

// IsNewerOrEqual reports whether target is at least base. Components are
// compared left to right, a missing component counts as zero.
func IsNewerOrEqual(base, target string) bool {
	baseParts := components(base)
	targetParts := components(target)

	n := max(len(baseParts), len(targetParts))
	for i := 0; i < n; i++ {
		b := at(baseParts, i)
		t := at(targetParts, i)
		if t < b {
			return false
		}
		if t > b {
			return true
		}
	}
	return true
}

func at(parts []int, idx int) int {
	if idx < len(parts) {
		return parts[idx]
	}
	return 0
}

// components maps each dot separated part to its leading decimal digits, so
// a qualifier like "0-SNAPSHOT" reads as 0.
func components(v string) []int {
	if v == "" {
		return nil
	}
	raw := strings.Split(v, ".")
	out := make([]int, len(raw))
	for idx, part := range raw {
		end := 0
		for end < len(part) && part[end] >= '0' && part[end] <= '9' {
			end++
		}
		if end == 0 {
			continue
		}
		n, err := strconv.Atoi(part[:end])
		if err != nil {
			continue
		}
		out[idx] = n
	}
	return out
}
