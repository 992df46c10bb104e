// Package prompt classifies interactive CLI output into structured prompt
// events and drives the per-terminal response policy that decides whether
// to auto-respond or escalate to a human or the orchestrator LLM.
package prompt

import (
	"regexp"
	"strings"

	"github.com/tuzig/vt10x"
)

// Kind is one of the six recognized interactive prompt shapes, in descending
// classification priority.
type Kind string

const (
	KindPassword     Kind = "password"
	KindInput        Kind = "input"
	KindArrowSelect  Kind = "arrow_select"
	KindChoice       Kind = "choice"
	KindYesNo        Kind = "yes_no"
	KindEnterConfirm Kind = "enter_confirm"
)

// Detected is the classifier's structured verdict on a tail buffer.
type Detected struct {
	Kind              Kind
	Confidence        float64
	MatchedText       string
	Options           []string
	DangerousKeywords []string
}

// tailLines bounds how much trailing output the detector considers.
const tailLines = 40

var dangerousKeywords = []string{
	"rm -rf", "drop", "delete", "force", "destructive", "sudo", "reset",
}

var (
	passwordLexeme = regexp.MustCompile(`(?i)(password|passphrase)\s*[:?]\s*$`)
	yesNoSuffix    = regexp.MustCompile(`(?i)(\(y/n\)|\[y/n\]|\[Y/n\]|\[y/N\]|yes/no\??)\s*$`)
	choiceSuffix   = regexp.MustCompile(`(?i)(\([a-z0-9](/[a-z0-9])+\)|\[[0-9](/[0-9])+\]|[A-Z]\)(/[A-Z]\))+)\s*$`)
	enterConfirm   = regexp.MustCompile(`(?i)(press enter to continue|\[continue\])\s*$`)
	promptSuffix   = regexp.MustCompile(`[:?]\s*$`)
	arrowMarker    = regexp.MustCompile(`^\s*(>|\*|●)\s`)
	trailingArrow  = regexp.MustCompile(`>\s*$`)
	optionListLine = regexp.MustCompile(`^\s*([0-9]+[.)]|[A-Za-z][.)])\s+\S`)
)

// Classify inspects the last tailLines of text and returns the highest
// priority matching prompt kind, or ok=false if no prompt is recognized.
func Classify(text string) (Detected, bool) {
	lines := tail(splitLines(text), tailLines)
	lastIdx := lastNonEmptyIndex(lines)
	if lastIdx < 0 {
		return Detected{}, false
	}
	lastNonEmpty := strings.TrimRight(lines[lastIdx], " \t")

	if passwordLexeme.MatchString(lastNonEmpty) {
		return withDanger(Detected{Kind: KindPassword, Confidence: 0.95, MatchedText: lastNonEmpty}), true
	}

	// Input is checked ahead of the more specific yes/no and list-based
	// kinds, but only claims a line that isn't itself one of those shapes
	// and that has no option list rendered above it - otherwise a Choice or
	// ArrowSelect block's trailing "Select an option:" line would be
	// misread as freeform input.
	if promptSuffix.MatchString(lastNonEmpty) && looksLikeProse(lastNonEmpty) &&
		!yesNoSuffix.MatchString(lastNonEmpty) && !choiceSuffix.MatchString(lastNonEmpty) &&
		!optionsListAbove(lines, lastIdx) {
		return withDanger(Detected{Kind: KindInput, Confidence: 0.7, MatchedText: lastNonEmpty}), true
	}

	if arrows, highlighted := arrowSelectBlock(lines); len(arrows) >= 2 && highlighted == 1 {
		return withDanger(Detected{
			Kind: KindArrowSelect, Confidence: 0.85,
			MatchedText: strings.Join(arrows, "\n"), Options: arrows,
		}), true
	}

	if choiceSuffix.MatchString(lastNonEmpty) {
		return withDanger(Detected{
			Kind: KindChoice, Confidence: 0.9, MatchedText: lastNonEmpty, Options: parseChoiceOptions(lastNonEmpty),
		}), true
	}

	if yesNoSuffix.MatchString(lastNonEmpty) {
		return withDanger(Detected{Kind: KindYesNo, Confidence: 0.9, MatchedText: lastNonEmpty}), true
	}

	if enterConfirm.MatchString(lastNonEmpty) || (trailingArrow.MatchString(lastNonEmpty) && looksComplete(lastNonEmpty)) {
		return withDanger(Detected{Kind: KindEnterConfirm, Confidence: 0.92, MatchedText: lastNonEmpty}), true
	}

	return Detected{}, false
}

// optionsListAbove reports whether any line before lastIdx looks like a
// rendered list of selectable options (an arrow-marked row or a numbered /
// lettered list item), which rules out classifying the trailing line as
// freeform Input even though it ends in ":" or "?".
func optionsListAbove(lines []string, lastIdx int) bool {
	for i := 0; i < lastIdx; i++ {
		l := lines[i]
		if strings.TrimSpace(l) == "" {
			continue
		}
		if arrowMarker.MatchString(l) || optionListLine.MatchString(l) {
			return true
		}
	}
	return false
}

func withDanger(d Detected) Detected {
	lower := strings.ToLower(d.MatchedText)
	for _, kw := range dangerousKeywords {
		if strings.Contains(lower, kw) {
			d.DangerousKeywords = append(d.DangerousKeywords, kw)
			if d.Confidence > 0.5 {
				d.Confidence = 0.5
			}
		}
	}
	return d
}

func arrowSelectBlock(lines []string) (matched []string, highlighted int) {
	for _, l := range lines {
		if arrowMarker.MatchString(l) {
			matched = append(matched, strings.TrimSpace(l))
			if strings.Contains(l, "\x1b[7m") || strings.HasPrefix(strings.TrimSpace(l), ">") {
				highlighted++
			}
		}
	}
	return matched, highlighted
}

func parseChoiceOptions(line string) []string {
	m := choiceSuffix.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], "/")
	for i, p := range parts {
		parts[i] = strings.Trim(p, "()[]")
	}
	return parts
}

func looksComplete(line string) bool {
	trimmed := strings.TrimRight(line, "> ")
	return len(trimmed) > 0 && (strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "done") || len(strimWords(trimmed)) > 2)
}

func looksLikeProse(line string) bool {
	return len(strimWords(line)) >= 2
}

func strimWords(s string) []string {
	return strings.Fields(s)
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// RenderScreen reads term's visible rows into plain text, stripping the
// escape sequences and cursor-control bytes that a raw PTY buffer still
// carries so Classify's suffix regexes see clean prose instead of SGR
// codes. Grounded on the teacher's vt10x-backed screen extraction
// (status_tracker.go's extractTerminalContent).
func RenderScreen(term vt10x.Terminal, cols, rows int) string {
	lines := make([]string, rows)
	for row := 0; row < rows; row++ {
		chars := make([]rune, cols)
		for col := 0; col < cols; col++ {
			g := term.Cell(col, row)
			if g.Char == 0 {
				chars[col] = ' '
			} else {
				chars[col] = g.Char
			}
		}
		lines[row] = strings.TrimRight(string(chars), " ")
	}
	return strings.Join(lines, "\n")
}

func lastNonEmptyIndex(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}
