package model

// CitationMarker is one in-text citation occurrence such as "[2, 3]" together
// with the sentence it appears in.
type CitationMarker struct {
	Numbers []int  `json:"numbers"`          // Cited reference numbers in order of appearance, no repeats
	Context string `json:"context"`          // Sentence (or raw window) surrounding the marker
	Source  string `json:"source,omitempty"` // Which extraction pass produced it (regex, model)
}

// Marker sources
const (
	MarkerSourceRegex = "regex"
	MarkerSourceModel = "model"
)

// NewCitationMarker builds a marker from raw numbers, dropping non-positive
// values and repeats while keeping first-seen order. ok is false when no
// usable number remains.
func NewCitationMarker(numbers []int, context, source string) (CitationMarker, bool) {
	seen := make(map[int]bool, len(numbers))
	var unique []int
	for _, n := range numbers {
		if n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	if len(unique) == 0 {
		return CitationMarker{}, false
	}
	return CitationMarker{Numbers: unique, Context: context, Source: source}, true
}

// MinNumber returns the smallest cited number.
func (m CitationMarker) MinNumber() int {
	min := m.Numbers[0]
	for _, n := range m.Numbers[1:] {
		if n < min {
			min = n
		}
	}
	return min
}

// ReferenceTitle is an entry of the document's reference list
type ReferenceTitle struct {
	Index int    `json:"index"` // 1-based position in the reference list
	Text  string `json:"text"`
}

// NewReferenceTitles assigns contiguous 1-based indices to titles.
func NewReferenceTitles(titles []string) []ReferenceTitle {
	refs := make([]ReferenceTitle, len(titles))
	for i, t := range titles {
		refs[i] = ReferenceTitle{Index: i + 1, Text: t}
	}
	return refs
}

// CitationStats is derived from markers and the reference count; never cached.
type CitationStats struct {
	TotalReferences int         `json:"total_references"`
	TotalMarkers    int         `json:"total_markers"`
	TotalCitations  int         `json:"total_citations"` // Sum of numbers across all markers
	Unique          []int       `json:"unique"`
	Missing         []int       `json:"missing"`
	Duplicates      map[int]int `json:"duplicates"`             // Number -> times cited, only when > 1
	OutOfRange      []int       `json:"out_of_range,omitempty"` // Cited numbers with no reference entry
}
