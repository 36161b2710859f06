package diff

import (
	"context"
	"errors"
	"fmt"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// ErrNoDifference is how a Provider reports "these texts are the same".
// It is distinct from other failures so the engine can tell a genuine
// no-op from a provider that missed a real change.
var ErrNoDifference = errors.New("no difference detected")

// Provider produces and applies unified diffs. Implementations may call
// out to external tooling; the engine bounds every call with a timeout
// and falls back to its own algorithms on any failure.
type Provider interface {
	Diff(ctx context.Context, original, modified string) (string, error)
	Apply(ctx context.Context, original, diff string) (string, error)
}

// matchPatchProvider is the default in-process Provider, built on
// diffmatchpatch. Lines are interned to runes so the diff runs over
// line sequences rather than characters.
type matchPatchProvider struct {
	dmp *diffpatch.DiffMatchPatch
}

func NewMatchPatchProvider() Provider {
	return &matchPatchProvider{dmp: diffpatch.New()}
}

func (p *matchPatchProvider) Diff(ctx context.Context, original, modified string) (string, error) {
	origLines := strings.Split(original, "\n")
	modLines := strings.Split(modified, "\n")

	interned := map[string]rune{}
	origRunes := internLines(interned, origLines)
	modRunes := internLines(interned, modLines)

	diffs := p.dmp.DiffMainRunes(origRunes, modRunes, false)

	var ops []lineOp
	fi, ti := 0, 0
	changed := false
	for i := range diffs {
		d := &diffs[i]
		switch d.Type {
		case diffpatch.DiffEqual:
			for range d.Text {
				ops = append(ops, lineOp{tag: ' ', text: origLines[fi]})
				fi++
				ti++
			}
		case diffpatch.DiffDelete:
			for range d.Text {
				ops = append(ops, lineOp{tag: '-', text: origLines[fi]})
				fi++
				changed = true
			}
		case diffpatch.DiffInsert:
			for range d.Text {
				ops = append(ops, lineOp{tag: '+', text: modLines[ti]})
				ti++
				changed = true
			}
		}
	}
	if !changed {
		return "", ErrNoDifference
	}

	hunks := buildHunks(ops, hunkContextLines)
	if len(hunks) == 0 {
		return "", ErrNoDifference
	}
	return renderUnified(hunks), nil
}

// Apply is strict: context and deletion lines must match the original
// (modulo leading/trailing whitespace drift) or an error is returned so
// the engine's tolerant walker can take over.
func (p *matchPatchProvider) Apply(ctx context.Context, original, diff string) (string, error) {
	hunks := parseHunks(diff)
	if len(hunks) == 0 {
		return "", fmt.Errorf("diff contains no hunks")
	}

	lines := strings.Split(original, "\n")
	out := make([]string, 0, len(lines))
	cursor := 0
	for _, h := range hunks {
		start := h.origStart - 1
		if start < cursor || start > len(lines) {
			return "", fmt.Errorf("hunk starts at line %d, cursor already at %d", h.origStart, cursor+1)
		}
		out = append(out, lines[cursor:start]...)
		cursor = start
		for _, l := range h.lines {
			tag, body := l[0], l[1:]
			switch tag {
			case ' ':
				if cursor >= len(lines) || !lineMatches(lines[cursor], body) {
					return "", fmt.Errorf("context mismatch at line %d", cursor+1)
				}
				out = append(out, lines[cursor])
				cursor++
			case '-':
				if cursor >= len(lines) || !lineMatches(lines[cursor], body) {
					return "", fmt.Errorf("deletion mismatch at line %d", cursor+1)
				}
				cursor++
			case '+':
				out = append(out, body)
			}
		}
	}
	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n"), nil
}

func lineMatches(have, want string) bool {
	return have == want || strings.TrimSpace(have) == strings.TrimSpace(want)
}

func internLines(interned map[string]rune, lines []string) []rune {
	rs := make([]rune, len(lines))
	for i, line := range lines {
		r, ok := interned[line]
		if !ok {
			r = rune(len(interned) + 1)
			interned[line] = r
		}
		rs[i] = r
	}
	return rs
}
