package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

var (
	// [1, 2]|passage
	pipeLine = regexp.MustCompile(`^\[\s*(\d+(?:\s*,\s*\d+)*)\s*\]\s*\|\s*(.*\S)\s*$`)
	// ([1, 2], "passage") or [[1, 2], 'passage']
	literalLine = regexp.MustCompile(`^[(\[]\s*\[\s*(\d+(?:\s*,\s*\d+)*)\s*\]\s*,\s*["'](.*)["']\s*[)\]]$`)
	// any bracketed number list
	bracketList = regexp.MustCompile(`\[\s*(\d+(?:\s*,\s*\d+)*)\s*\]`)
)

// lineStrategy is one step of the reply line parser chain. A strategy either
// yields a marker or passes the line on to the next one.
type lineStrategy struct {
	name  string
	parse func(line string) (model.CitationMarker, bool)
}

var lineChain = []lineStrategy{
	{name: "structured", parse: parseStructured},
	{name: "repaired", parse: parseRepaired},
	{name: "rescued", parse: parseRescued},
}

// lineOutcome reports how a reply line was handled
type lineOutcome int

const (
	lineParsed lineOutcome = iota
	lineIgnored
	lineUnparseable
)

// parseLine runs the chain. Lines without a bracket are chatter and ignored;
// lines with one that no strategy accepts are unparseable.
func parseLine(line string) (model.CitationMarker, string, lineOutcome) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.Contains(line, "[") {
		return model.CitationMarker{}, "", lineIgnored
	}
	for _, s := range lineChain {
		if m, ok := s.parse(line); ok {
			return m, s.name, lineParsed
		}
	}
	return model.CitationMarker{}, "", lineUnparseable
}

func parseStructured(line string) (model.CitationMarker, bool) {
	if strings.Count(line, `"`)%2 == 1 {
		return model.CitationMarker{}, false
	}
	if g := pipeLine.FindStringSubmatch(line); g != nil {
		return markerFrom(g[1], trimQuotes(g[2]))
	}
	if g := literalLine.FindStringSubmatch(line); g != nil {
		return markerFrom(g[1], strings.TrimSpace(g[2]))
	}
	return model.CitationMarker{}, false
}

// parseRepaired closes a single unbalanced quote, bracket or paren and
// retries the structured forms
func parseRepaired(line string) (model.CitationMarker, bool) {
	repaired := repairLine(line)
	if repaired == line {
		return model.CitationMarker{}, false
	}
	return parseStructured(repaired)
}

func repairLine(line string) string {
	if strings.Count(line, `"`) == 1 {
		line += `"`
	}
	if strings.Count(line, "[") > strings.Count(line, "]") {
		// In the pipe form the bracket belongs before the separator
		if i := strings.Index(line, "|"); i >= 0 {
			line = line[:i] + "]" + line[i:]
		} else {
			line += "]"
		}
	}
	if strings.Count(line, "(") > strings.Count(line, ")") {
		line += ")"
	}
	return line
}

// parseRescued takes the first bracketed list anywhere in the line and
// treats the text after it as the passage
func parseRescued(line string) (model.CitationMarker, bool) {
	loc := bracketList.FindStringSubmatchIndex(line)
	if loc == nil {
		return model.CitationMarker{}, false
	}
	numbers := line[loc[2]:loc[3]]
	passage := strings.Trim(line[loc[1]:], " \t|:;,-)]\"'")
	if passage == "" {
		passage = strings.Trim(line[:loc[0]], " \t|:;,-([\"'")
	}
	return markerFrom(numbers, passage)
}

func markerFrom(numbers, passage string) (model.CitationMarker, bool) {
	return model.NewCitationMarker(parseNumbers(numbers), passage, model.MarkerSourceModel)
}

// parseNumbers splits a comma list, skipping tokens that are not integers
func parseNumbers(s string) []int {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
