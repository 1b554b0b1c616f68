package reconcile

import (
	"sort"

	"github.com/ppiankov/citecheck/internal/model"
)

// Analyze cross-checks the reference list against the citation markers. It is
// pure: the result depends only on its inputs and is recomputed on each call.
func Analyze(titles []model.ReferenceTitle, markers []model.CitationMarker) model.CitationStats {
	n := len(titles)
	counts := make(map[int]int)
	total := 0
	for _, m := range markers {
		for _, num := range m.Numbers {
			counts[num]++
			total++
		}
	}

	stats := model.CitationStats{
		TotalReferences: n,
		TotalMarkers:    len(markers),
		TotalCitations:  total,
		Unique:          []int{},
		Missing:         []int{},
		Duplicates:      map[int]int{},
	}

	for num, c := range counts {
		stats.Unique = append(stats.Unique, num)
		if c > 1 {
			stats.Duplicates[num] = c
		}
		if num < 1 || num > n {
			stats.OutOfRange = append(stats.OutOfRange, num)
		}
	}
	for i := 1; i <= n; i++ {
		if counts[i] == 0 {
			stats.Missing = append(stats.Missing, i)
		}
	}

	sort.Ints(stats.Unique)
	sort.Ints(stats.OutOfRange)
	return stats
}

// InRange reports whether every number of m names an entry of a reference
// list with n titles
func InRange(m model.CitationMarker, n int) bool {
	for _, num := range m.Numbers {
		if num < 1 || num > n {
			return false
		}
	}
	return true
}
