package rewrite

import (
	"sort"
	"strings"
)

// edit replaces text[start:end] with repl. Offsets are bytes into the buffer the edit was computed on.
type edit struct {
	start int
	end   int
	repl  string
	order int
}

// editList collects edits against one buffer and applies them in a single left-to-right pass.
type editList struct {
	edits []edit
}

func (l *editList) add(start, end int, repl string) {
	l.edits = append(l.edits, edit{start: start, end: end, repl: repl, order: len(l.edits)})
}

func (l *editList) empty() bool {
	return len(l.edits) == 0
}

// normalize sorts edits ascending by position (stable by insertion order) and drops any edit that
// overlaps an earlier one.
func (l *editList) normalize() []edit {
	sorted := append([]edit(nil), l.edits...)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start < sorted[j].start
	})

	out := sorted[:0]
	lastEnd := -1

	for _, e := range sorted {
		if e.start < lastEnd {
			continue
		}

		if e.end == e.start && e.repl == "" {
			continue
		}

		out = append(out, e)
		lastEnd = e.end
	}

	return out
}

// offsetMap translates positions in the old buffer to positions in the rewritten one.
type offsetMap struct {
	edits []edit
}

// apply rewrites text and returns the new buffer with its offset map.
func (l *editList) apply(text string) (string, offsetMap) {
	edits := l.normalize()

	var sb strings.Builder

	sb.Grow(len(text))

	pos := 0

	for _, e := range edits {
		sb.WriteString(text[pos:e.start])
		sb.WriteString(e.repl)
		pos = e.end
	}

	sb.WriteString(text[pos:])

	return sb.String(), offsetMap{edits: edits}
}

// mapStart maps a span start. A start inside a replaced range snaps to the replacement start.
func (m offsetMap) mapStart(pos int) int {
	return m.mapPos(pos, false)
}

// mapEnd maps a span end. An end inside a replaced range snaps to the replacement end.
func (m offsetMap) mapEnd(pos int) int {
	return m.mapPos(pos, true)
}

func (m offsetMap) mapPos(pos int, isEnd bool) int {
	delta := 0

	for _, e := range m.edits {
		switch {
		case pos >= e.end:
			delta += len(e.repl) - (e.end - e.start)
		case pos > e.start:
			if isEnd {
				return e.start + delta + len(e.repl)
			}

			return e.start + delta
		default:
			return pos + delta
		}
	}

	return pos + delta
}

// rangeOf returns where an old range [start, end) lands after the rewrite.
func (m offsetMap) rangeOf(start, end int) (int, int) {
	return m.mapStart(start), m.mapEnd(end)
}

// widenDeletion extends a deletion over one neighbouring space so no double space is left behind.
func widenDeletion(text string, start, end int) (int, int) {
	before := start == 0 || text[start-1] == ' ' || text[start-1] == '\n'

	if end < len(text) && text[end] == ' ' && before {
		return start, end + 1
	}

	after := end == len(text) || text[end] == '\n'

	if start > 0 && text[start-1] == ' ' && after {
		return start - 1, end
	}

	return start, end
}
