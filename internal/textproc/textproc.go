// Package textproc normalizes raw transcription output: sentence
// segmentation, adjacent-duplicate suppression, and language-conditional
// punctuation repair.
package textproc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	// Units longer than this are soft-split to bound segment size when the
	// transcription carries no punctuation.
	longSegmentRunes = 80
	softSplitRunes   = 60

	// Near-duplicate suppression tolerates this much trailing drift.
	nearDuplicateSlack = 2

	// Light-pause insertion is skipped once the text already carries this
	// many pause marks, and requires an unbroken run of at least
	// connectiveRunRunes characters before the connective.
	pauseDensityCeiling = 3
	connectiveRunRunes  = 8
)

var (
	sentenceEndRunes = map[rune]bool{
		'。': true, '．': true, '.': true,
		'!': true, '?': true, '！': true, '？': true,
	}

	// Heuristic, not grammar: a fixed connective set after a long unbroken
	// run marks a plausible pause point.
	connectivePattern = regexp.MustCompile(`([^、。！？!?\s]{` + strconv.Itoa(connectiveRunRunes) + `,})(そして|それで|しかし|でも|だから|また)`)

	altFullStopReplacer = strings.NewReplacer("．", "。", "｡", "。")
	repeatedKutenRE     = regexp.MustCompile(`。{2,}`)
	whitespaceRunRE     = regexp.MustCompile(`\s{2,}`)
)

// Process applies the full post-processing pass. It is deterministic, and
// idempotent whenever the language hint does not trigger punctuation repair.
func Process(text, lang string) string {
	segments := segment(text)
	kept := suppressDuplicates(segments)
	joined := join(kept, lang)
	if needsPunctuationRepair(lang) {
		joined = repairPunctuation(joined)
	}
	return joined
}

// needsPunctuationRepair reports whether the language hint selects the
// punctuation repair pass.
func needsPunctuationRepair(lang string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "ja")
}

// segment splits text into sentence-like units on sentence-final punctuation
// or line breaks, soft-splitting oversized punctuation-free units.
func segment(text string) []string {
	var units []string
	var current []rune

	flush := func() {
		if len(current) == 0 {
			return
		}
		units = append(units, string(current))
		current = current[:0]
	}

	for _, r := range text {
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		current = append(current, r)
		if sentenceEndRunes[r] {
			flush()
		}
	}
	flush()

	out := make([]string, 0, len(units))
	for _, unit := range units {
		runes := []rune(unit)
		if len(runes) <= longSegmentRunes {
			out = append(out, unit)
			continue
		}
		for start := 0; start < len(runes); start += softSplitRunes {
			end := start + softSplitRunes
			if end > len(runes) {
				end = len(runes)
			}
			out = append(out, string(runes[start:end]))
		}
	}
	return out
}

// suppressDuplicates trims segments, drops empties, and removes a segment
// that duplicates the immediately preceding kept segment under normalized
// comparison (exact, or a near match whose normalized forms differ by at
// most nearDuplicateSlack runes with one a prefix of the other).
func suppressDuplicates(segments []string) []string {
	kept := make([]string, 0, len(segments))
	prevNorm := ""

	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		norm := normalizeForCompare(seg)
		if norm != "" && prevNorm != "" && isDuplicate(prevNorm, norm) {
			continue
		}
		kept = append(kept, seg)
		if norm != "" {
			prevNorm = norm
		}
	}
	return kept
}

// normalizeForCompare lowercases and strips punctuation and whitespace.
func normalizeForCompare(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isDuplicate reports whether two normalized segments match exactly or as a
// near match ("...it was" vs "...it was.").
func isDuplicate(prev, cur string) bool {
	if prev == cur {
		return true
	}
	pr := []rune(prev)
	cr := []rune(cur)
	diff := len(pr) - len(cr)
	if diff < 0 {
		diff = -diff
	}
	if diff > nearDuplicateSlack {
		return false
	}
	return strings.HasPrefix(prev, cur) || strings.HasPrefix(cur, prev)
}

// join re-assembles kept segments, guaranteeing each ends with a sentence
// mark, then collapses repeated marks.
func join(segments []string, lang string) string {
	mark := "."
	separator := " "
	if needsPunctuationRepair(lang) {
		mark = "。"
		separator = ""
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		runes := []rune(seg)
		if len(runes) > 0 && !sentenceEndRunes[runes[len(runes)-1]] {
			seg += mark
		}
		parts = append(parts, seg)
	}

	joined := strings.Join(parts, separator)
	return collapseRepeatedMarks(joined)
}

// collapseRepeatedMarks reduces runs of an identical sentence mark to one.
func collapseRepeatedMarks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev && sentenceEndRunes[r] {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// repairPunctuation normalizes alternate full-stop glyphs, collapses
// repeats, inserts at most one light-pause mark before a discourse
// connective when the text is pause-sparse, and collapses whitespace runs.
func repairPunctuation(text string) string {
	text = altFullStopReplacer.Replace(text)
	text = repeatedKutenRE.ReplaceAllString(text, "。")

	if strings.Count(text, "、") < pauseDensityCeiling {
		if loc := connectivePattern.FindStringSubmatchIndex(text); loc != nil {
			// loc[4] is the connective start: splice the pause mark in front.
			text = text[:loc[4]] + "、" + text[loc[4]:]
		}
	}

	return whitespaceRunRE.ReplaceAllString(text, " ")
}
