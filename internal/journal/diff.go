package journal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// buildDiff renders a line diff of the two snapshots as indented JSON and
// counts the changed lines.
func buildDiff(label string, before, after Snapshot) (string, int, int) {
	a, b := render(before), render(after)
	if a == b {
		return "", 0, 0
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(ca, cb, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	additions, deletions := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}

	text := dmp.PatchToText(dmp.PatchMake(a, diffs))
	if text == "" {
		return "", additions, deletions
	}

	var sb strings.Builder
	if label != "" {
		sb.WriteString(fmt.Sprintf("--- %s\n+++ %s\n", label, label))
	}
	sb.WriteString(text)
	return sb.String(), additions, deletions
}

func render(s Snapshot) string {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
