package patch

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats counts changed lines between two snapshots.
type Stats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

func (s Stats) String() string {
	return fmt.Sprintf("+%d -%d", s.Added, s.Removed)
}

func lineDiffs(before, after string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

func DiffStats(before, after string) Stats {
	var stats Stats
	for _, d := range lineDiffs(before, after) {
		n := len(splitLines(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Added += n
		case diffmatchpatch.DiffDelete:
			stats.Removed += n
		}
	}
	return stats
}

// Preview renders a unified-style listing of changed lines, capped at maxLines.
func Preview(path, before, after string, maxLines int) string {
	var b strings.Builder
	if before == "" {
		b.WriteString("--- /dev/null\n")
	} else {
		fmt.Fprintf(&b, "--- %s\n", path)
	}
	fmt.Fprintf(&b, "+++ %s\n", path)

	written := 0
	for _, d := range lineDiffs(before, after) {
		prefix := ""
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}

		for _, line := range splitLines(d.Text) {
			if maxLines > 0 && written >= maxLines {
				b.WriteString("...\n")
				return b.String()
			}
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
			written++
		}
	}

	return b.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
