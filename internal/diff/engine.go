package diff

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/threadmill/storefront-backend/internal/logger"
)

// Stats summarizes a unified diff.
type Stats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Engine creates and applies line-based unified diffs. A pluggable
// Provider does the heavy lifting; every provider call is bounded by a
// timeout and backed by pure fallback algorithms, so the engine always
// makes progress even when the provider misbehaves.
type Engine struct {
	provider Provider
	timeout  time.Duration
	log      *logger.Logger
}

func NewEngine(provider Provider, timeout time.Duration, baseLog *logger.Logger) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Engine{
		provider: provider,
		timeout:  timeout,
		log:      baseLog.With("component", "DiffEngine"),
	}
}

// NormalizeLineEndings rewrites CRLF and bare CR to LF.
func NormalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// CreateDiff returns a unified diff from original to modified, or ""
// when the normalized texts are equal. If the provider fails or claims
// no difference despite the texts differing, the single-hunk fallback
// runs; it is guaranteed to return a non-empty diff for unequal inputs.
func (e *Engine) CreateDiff(ctx context.Context, original, modified string) (string, error) {
	orig := NormalizeLineEndings(original)
	mod := NormalizeLineEndings(modified)
	if orig == mod {
		return "", nil
	}

	diffText, err := e.runDiff(ctx, orig, mod)
	if err != nil {
		if !errors.Is(err, ErrNoDifference) {
			e.log.Warn("diff provider failed, using fallback diff", "error", err)
		}
		return e.fallbackCreate(orig, mod), nil
	}
	if strings.TrimSpace(diffText) == "" {
		return e.fallbackCreate(orig, mod), nil
	}
	return diffText, nil
}

// ApplyDiff applies a unified diff to original. A blank diff returns
// the original unchanged. When the provider's strict application fails,
// a tolerant hunk walker applies the diff without hard-failing on
// context drift; this trades strictness for resilience against
// concurrent baseline changes.
func (e *Engine) ApplyDiff(ctx context.Context, original, diffText string) (string, error) {
	if strings.TrimSpace(diffText) == "" {
		return original, nil
	}
	orig := NormalizeLineEndings(original)

	result, err := e.runApply(ctx, orig, diffText)
	if err == nil {
		return result, nil
	}
	e.log.Debug("provider apply failed, using tolerant hunk walker", "error", err)

	hunks := parseHunks(diffText)
	if len(hunks) == 0 {
		return "", fmt.Errorf("diff contains no hunks")
	}
	return applyTolerant(orig, hunks), nil
}

// GetDiffStats counts addition and deletion lines, excluding the
// +++/--- file headers.
func (e *Engine) GetDiffStats(diffText string) Stats {
	var stats Stats
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			stats.Additions++
		case strings.HasPrefix(line, "-"):
			stats.Deletions++
		}
	}
	return stats
}

var reverseHeaderRe = regexp.MustCompile(`^@@ -(\d+(?:,\d+)?) \+(\d+(?:,\d+)?) @@`)

// ReverseDiff swaps additions and deletions and the old/new hunk ranges,
// producing the diff that undoes the input.
func (e *Engine) ReverseDiff(diffText string) string {
	lines := strings.Split(diffText, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case reverseHeaderRe.MatchString(line):
			out = append(out, reverseHeaderRe.ReplaceAllString(line, "@@ -$2 +$1 @@"))
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			out = append(out, line)
		case strings.HasPrefix(line, "+"):
			out = append(out, "-"+line[1:])
		case strings.HasPrefix(line, "-"):
			out = append(out, "+"+line[1:])
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// RemoveChange strips one addition line from the diff, matched against
// targetText by exact body, tag-stripped body, single-word equality and
// finally substring containment, in that precedence order. A hunk left
// with no additions or deletions is dropped; a diff left with no hunks
// becomes empty.
func (e *Engine) RemoveChange(diffText, targetText string) string {
	hunks := parseHunks(diffText)
	if len(hunks) == 0 {
		return diffText
	}

	type position struct{ hunkIdx, lineIdx int }
	var exact, stripped, word, contains *position
	targetStripped := stripTags(targetText)
	targetFields := strings.Fields(targetStripped)

	for hi := range hunks {
		for li, l := range hunks[hi].lines {
			if l[0] != '+' {
				continue
			}
			body := strings.TrimSpace(l[1:])
			pos := position{hi, li}
			if exact == nil && body == strings.TrimSpace(targetText) {
				exact = &pos
				continue
			}
			bodyStripped := stripTags(body)
			if stripped == nil && bodyStripped != "" && bodyStripped == targetStripped {
				stripped = &pos
				continue
			}
			bodyFields := strings.Fields(bodyStripped)
			if word == nil && len(bodyFields) == 1 && len(targetFields) == 1 &&
				strings.EqualFold(bodyFields[0], targetFields[0]) {
				word = &pos
				continue
			}
			if contains == nil && targetStripped != "" && bodyStripped != "" &&
				(strings.Contains(bodyStripped, targetStripped) || strings.Contains(targetStripped, bodyStripped)) {
				contains = &pos
			}
		}
	}

	match := exact
	for _, candidate := range []*position{stripped, word, contains} {
		if match == nil {
			match = candidate
		}
	}
	if match == nil {
		return diffText
	}

	h := &hunks[match.hunkIdx]
	h.lines = append(h.lines[:match.lineIdx], h.lines[match.lineIdx+1:]...)
	if h.newCount > 0 {
		h.newCount--
	}

	kept := hunks[:0]
	for _, hk := range hunks {
		changed := false
		for _, l := range hk.lines {
			if l[0] == '+' || l[0] == '-' {
				changed = true
				break
			}
		}
		if changed {
			kept = append(kept, hk)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return renderUnified(kept)
}

// fallbackCreate emits a single hunk spanning the first through last
// differing lines with up to three context lines on each side. For
// unequal inputs the result is always non-empty.
func (e *Engine) fallbackCreate(orig, mod string) string {
	origLines := strings.Split(orig, "\n")
	modLines := strings.Split(mod, "\n")

	first := 0
	for first < len(origLines) && first < len(modLines) && origLines[first] == modLines[first] {
		first++
	}
	lastO, lastM := len(origLines)-1, len(modLines)-1
	for lastO >= first && lastM >= first && origLines[lastO] == modLines[lastM] {
		lastO--
		lastM--
	}

	ctxStart := first - hunkContextLines
	if ctxStart < 0 {
		ctxStart = 0
	}
	ctxEnd := lastO + hunkContextLines
	if ctxEnd > len(origLines)-1 {
		ctxEnd = len(origLines) - 1
	}

	h := hunk{origStart: ctxStart + 1, newStart: ctxStart + 1}
	for i := ctxStart; i < first; i++ {
		h.lines = append(h.lines, " "+origLines[i])
		h.origCount++
		h.newCount++
	}
	for i := first; i <= lastO; i++ {
		h.lines = append(h.lines, "-"+origLines[i])
		h.origCount++
	}
	for i := first; i <= lastM; i++ {
		h.lines = append(h.lines, "+"+modLines[i])
		h.newCount++
	}
	for i := lastO + 1; i <= ctxEnd; i++ {
		h.lines = append(h.lines, " "+origLines[i])
		h.origCount++
		h.newCount++
	}
	return renderUnified([]hunk{h})
}

// applyTolerant walks hunks in header order against the original line
// array: context advances the cursor, '-' removes the line at the
// cursor without advancing, '+' inserts at the cursor and advances.
// Context mismatches never abort the walk.
func applyTolerant(orig string, hunks []hunk) string {
	lines := strings.Split(orig, "\n")
	offset := 0
	for _, h := range hunks {
		cursor := h.origStart - 1 + offset
		if cursor < 0 {
			cursor = 0
		}
		if cursor > len(lines) {
			cursor = len(lines)
		}
		for _, l := range h.lines {
			switch l[0] {
			case ' ':
				if cursor < len(lines) {
					cursor++
				}
			case '-':
				if cursor < len(lines) {
					lines = append(lines[:cursor], lines[cursor+1:]...)
					offset--
				}
			case '+':
				body := l[1:]
				lines = append(lines[:cursor], append([]string{body}, lines[cursor:]...)...)
				cursor++
				offset++
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) runDiff(ctx context.Context, orig, mod string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		text, err := e.provider.Diff(ctx, orig, mod)
		ch <- outcome{text, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-ch:
		return o.text, o.err
	}
}

func (e *Engine) runApply(ctx context.Context, orig, diffText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		text, err := e.provider.Apply(ctx, orig, diffText)
		ch <- outcome{text, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-ch:
		return o.text, o.err
	}
}
