package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const hunkContextLines = 3

type lineOp struct {
	tag  byte // ' ', '-' or '+'
	text string
}

type hunk struct {
	origStart, origCount int
	newStart, newCount   int
	lines                []string // marker char + body
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

func parseHunks(diff string) []hunk {
	var hunks []hunk
	var cur *hunk
	for _, line := range strings.Split(diff, "\n") {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			hunks = append(hunks, hunk{
				origStart: atoi(m[1], 1),
				origCount: atoi(m[2], 1),
				newStart:  atoi(m[3], 1),
				newCount:  atoi(m[4], 1),
			})
			cur = &hunks[len(hunks)-1]
			continue
		}
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") ||
			strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index ") {
			continue
		}
		if cur == nil || line == "" {
			continue
		}
		switch line[0] {
		case ' ', '-', '+':
			cur.lines = append(cur.lines, line)
		}
	}
	return hunks
}

// buildHunks groups line operations into hunks with up to context
// common lines on each side, tracking 1-based line numbers on both the
// original and modified texts.
func buildHunks(ops []lineOp, context int) []hunk {
	n := len(ops)
	keep := make([]bool, n)
	any := false
	for i, op := range ops {
		if op.tag == ' ' {
			continue
		}
		any = true
		lo := i - context
		if lo < 0 {
			lo = 0
		}
		hi := i + context
		if hi > n-1 {
			hi = n - 1
		}
		for j := lo; j <= hi; j++ {
			keep[j] = true
		}
	}
	if !any {
		return nil
	}

	origLine, newLine := 1, 1
	var hunks []hunk
	var cur *hunk
	for i, op := range ops {
		if keep[i] {
			if cur == nil {
				hunks = append(hunks, hunk{origStart: origLine, newStart: newLine})
				cur = &hunks[len(hunks)-1]
			}
			cur.lines = append(cur.lines, string(op.tag)+op.text)
			switch op.tag {
			case ' ':
				cur.origCount++
				cur.newCount++
			case '-':
				cur.origCount++
			case '+':
				cur.newCount++
			}
		} else {
			cur = nil
		}
		switch op.tag {
		case ' ':
			origLine++
			newLine++
		case '-':
			origLine++
		case '+':
			newLine++
		}
	}
	return hunks
}

// renderUnified prints hunks with generic a/ b/ file headers; the real
// path never appears in stored diffs.
func renderUnified(hunks []hunk) string {
	var b strings.Builder
	b.WriteString("--- a/file\n+++ b/file\n")
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.origStart, h.origCount, h.newStart, h.newCount)
		for _, l := range h.lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
