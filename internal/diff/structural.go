package diff

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/threadmill/storefront-backend/internal/logger"
)

// TextChange is one text-leaf substitution: replace old with new
// wherever a text-bearing leaf equals old. The pair is stored on the
// patch row as its structural diff.
type TextChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// StructuralEngine diffs structured (markup + embedded script) sources
// by their text-bearing leaves instead of line positions, so content
// edits survive surrounding markup churn.
type StructuralEngine struct {
	log *logger.Logger
}

func NewStructuralEngine(baseLog *logger.Logger) *StructuralEngine {
	return &StructuralEngine{log: baseLog.With("component", "StructuralDiffEngine")}
}

// CreateTextChanges pairs every text leaf that appears only in the
// modified tree with its nearest leaf in the original tree, matched by
// case-insensitive substring containment in either direction. It
// returns nil when either side fails to parse or no pair is found.
func (s *StructuralEngine) CreateTextChanges(original, modified string) []TextChange {
	origNodes, ok := parseMarkup(original)
	if !ok {
		return nil
	}
	modNodes, ok := parseMarkup(modified)
	if !ok {
		return nil
	}

	origLeaves := collectTextLeaves(origNodes)
	modLeaves := collectTextLeaves(modNodes)

	// Deterministic iteration: sorted new-only leaves.
	var added []string
	for leaf := range modLeaves {
		if leaf == "" {
			continue
		}
		if _, exists := origLeaves[leaf]; !exists {
			added = append(added, leaf)
		}
	}
	sort.Strings(added)

	var changes []TextChange
	for _, newLeaf := range added {
		if old, found := nearestLeaf(origLeaves, newLeaf); found {
			changes = append(changes, TextChange{Old: old, New: newLeaf})
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

// ApplyTextChanges replaces matching leaves and re-serializes the tree.
// A parse or render failure returns the input unchanged.
func (s *StructuralEngine) ApplyTextChanges(text string, changes []TextChange) string {
	if len(changes) == 0 {
		return text
	}
	nodes, ok := parseMarkup(text)
	if !ok {
		return text
	}

	byOld := make(map[string]string, len(changes))
	for _, c := range changes {
		byOld[c.Old] = c.New
	}
	for _, n := range nodes {
		rewriteTextLeaves(n, byOld)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			s.log.Debug("render failed after structural apply", "error", err)
			return text
		}
	}
	return buf.String()
}

// CanParse reports whether the text parses as markup; composition uses
// it to validate candidate output for structured files.
func (s *StructuralEngine) CanParse(text string) bool {
	_, ok := parseMarkup(text)
	return ok
}

// parseMarkup parses full documents as-is and everything else as a body
// fragment, so fragments round-trip without gaining html/head/body
// wrappers.
func parseMarkup(text string) ([]*html.Node, bool) {
	if strings.Contains(strings.ToLower(text), "<html") {
		doc, err := html.Parse(strings.NewReader(text))
		if err != nil {
			return nil, false
		}
		return []*html.Node{doc}, true
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(text), body)
	if err != nil {
		return nil, false
	}
	return nodes, true
}

func collectTextLeaves(nodes []*html.Node) map[string]struct{} {
	leaves := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if isScriptParent(n.Parent) {
				for _, lit := range scanStringLiterals(n.Data) {
					leaves[lit] = struct{}{}
				}
			} else if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				leaves[trimmed] = struct{}{}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return leaves
}

func rewriteTextLeaves(n *html.Node, byOld map[string]string) {
	if n.Type == html.TextNode {
		if isScriptParent(n.Parent) {
			for old, updated := range byOld {
				n.Data = replaceStringLiteral(n.Data, old, updated)
			}
		} else if updated, ok := byOld[strings.TrimSpace(n.Data)]; ok {
			leading := n.Data[:len(n.Data)-len(strings.TrimLeft(n.Data, " \t\n"))]
			trailing := n.Data[len(strings.TrimRight(n.Data, " \t\n")):]
			n.Data = leading + updated + trailing
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteTextLeaves(c, byOld)
	}
}

func isScriptParent(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.Data == "script")
}

// nearestLeaf finds the original leaf closest to target: containment in
// either direction, case-insensitive, preferring the smallest length
// gap so short fragments pair with their most similar original.
func nearestLeaf(origLeaves map[string]struct{}, target string) (string, bool) {
	lowerTarget := strings.ToLower(target)
	best := ""
	bestGap := -1
	for leaf := range origLeaves {
		lowerLeaf := strings.ToLower(leaf)
		if !strings.Contains(lowerLeaf, lowerTarget) && !strings.Contains(lowerTarget, lowerLeaf) {
			continue
		}
		gap := len(leaf) - len(target)
		if gap < 0 {
			gap = -gap
		}
		if bestGap < 0 || gap < bestGap || (gap == bestGap && leaf < best) {
			best = leaf
			bestGap = gap
		}
	}
	return best, bestGap >= 0
}

// scanStringLiterals extracts the contents of single- and double-quoted
// string literals from embedded script text. Escapes are honored;
// nothing else of the script grammar is interpreted.
func scanStringLiterals(script string) []string {
	var literals []string
	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		quote := runes[i]
		if quote != '\'' && quote != '"' && quote != '`' {
			continue
		}
		var sb strings.Builder
		closed := false
		j := i + 1
		for ; j < len(runes); j++ {
			if runes[j] == '\\' && j+1 < len(runes) {
				sb.WriteRune(runes[j+1])
				j++
				continue
			}
			if runes[j] == quote {
				closed = true
				break
			}
			sb.WriteRune(runes[j])
		}
		if closed {
			if lit := sb.String(); strings.TrimSpace(lit) != "" {
				literals = append(literals, lit)
			}
			i = j
		}
	}
	return literals
}

// replaceStringLiteral swaps the contents of any literal equal to old
// for updated, leaving the quoting intact.
func replaceStringLiteral(script, old, updated string) string {
	for _, quote := range []string{`"`, `'`, "`"} {
		script = strings.ReplaceAll(script, quote+old+quote, quote+updated+quote)
	}
	return script
}
