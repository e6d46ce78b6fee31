// Package locator resolves fuzzy proposer anchors into precise byte ranges
// in a document. Resolution runs a fixed cascade of strategies in order of
// decreasing confidence; the first usable match wins. The cascade is a
// deliberate greedy policy, not a search for the globally best candidate.
package locator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// #region cascade
// strategyFunc is the common signature every cascade tier shares. doc is
// the full document text, minStart the earliest byte a span may start at
// (the end of any structural prefix block). A nil return means the tier
// produced no usable match.
type strategyFunc func(doc string, a Anchor, minStart int, cfg Config) *Range

var cascade = []strategyFunc{
	locateExact,
	locateWhitespace,
	locateSentence,
	locateContext,
	locateKeyPhrase,
}

// Locate resolves an anchor against the current document text. prefixEnd
// is the byte offset where anchorable content begins; candidates starting
// before it are discarded, and insertion points are clamped forward to it.
// Returns nil when no strategy matches; the caller must surface that as a
// zero-confidence operation rather than dropping the proposal.
func Locate(doc string, a Anchor, prefixEnd int, cfg Config) *Range {
	if a.Empty() {
		return nil
	}
	if prefixEnd < 0 {
		prefixEnd = 0
	}
	if prefixEnd > len(doc) {
		prefixEnd = len(doc)
	}

	for _, strat := range cascade {
		r := strat(doc, a, prefixEnd, cfg)
		if r == nil {
			continue
		}
		if a.IsInsertion() {
			collapseToInsertion(doc, r, prefixEnd)
		}
		clampRange(r, len(doc))
		return r
	}
	return nil
}

// collapseToInsertion turns a matched anchor span into the insertion point
// immediately after it, skipping one trailing newline so multi-line
// insertions do not merge into the anchor line.
func collapseToInsertion(doc string, r *Range, prefixEnd int) {
	pos := r.End
	if pos < len(doc) && doc[pos] == '\r' && pos+1 < len(doc) && doc[pos+1] == '\n' {
		pos += 2
	} else if pos < len(doc) && doc[pos] == '\n' {
		pos++
	}
	if pos < prefixEnd {
		pos = prefixEnd
	}
	r.Start, r.End = pos, pos
}

func clampRange(r *Range, docLen int) {
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > docLen {
		r.End = docLen
	}
	if r.End < r.Start {
		r.End = r.Start
	}
}
// #endregion cascade

// #region exact
// locateExact is tier 1: literal substring search, confidence 1.0.
func locateExact(doc string, a Anchor, minStart int, cfg Config) *Range {
	target := anchorTarget(a)
	if target == "" {
		return nil
	}
	floor := minStart
	if a.IsInsertion() {
		floor = 0 // the insertion point is clamped later, the anchor may straddle
	}
	pos := selectOccurrence(doc, occurrences(doc, target, floor), len(target), a)
	if pos < 0 {
		return nil
	}
	return &Range{Start: pos, End: pos + len(target), Confidence: 1.0, Strategy: StrategyExact}
}
// #endregion exact

// #region whitespace
// locateWhitespace is tier 2: both the anchor and the document are
// compared with whitespace runs collapsed to single spaces, then the match
// is mapped back to original byte offsets. Confidence 0.9.
func locateWhitespace(doc string, a Anchor, minStart int, cfg Config) *Range {
	target := anchorTarget(a)
	if target == "" {
		return nil
	}
	normTarget := strings.Join(strings.Fields(target), " ")
	if normTarget == "" {
		return nil
	}
	normDoc, offs := normalizeWithMap(doc)

	var positions []int
	floor := minStart
	if a.IsInsertion() {
		floor = 0
	}
	for _, np := range occurrences(normDoc, normTarget, 0) {
		if offs[np] >= floor {
			positions = append(positions, np)
		}
	}
	np := selectOccurrence(doc, mapAll(positions, offs), len(normTarget), a)
	if np < 0 {
		return nil
	}
	// np is an original offset; recover the normalized index to map the end.
	ni := -1
	for _, cand := range positions {
		if offs[cand] == np {
			ni = cand
			break
		}
	}
	if ni < 0 {
		return nil
	}
	last := offs[ni+len(normTarget)-1]
	_, sz := utf8.DecodeRuneInString(doc[last:])
	return &Range{Start: np, End: last + sz, Confidence: 0.9, Strategy: StrategyWhitespace}
}

// normalizeWithMap collapses whitespace runs to single spaces. For every
// byte of the normalized output it records the byte offset in s that the
// byte originated from (a collapsed space maps to the run's first byte).
func normalizeWithMap(s string) (string, []int) {
	var b strings.Builder
	offs := make([]int, 0, len(s))
	inRun := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if !inRun && b.Len() > 0 {
				b.WriteByte(' ')
				offs = append(offs, i)
			}
			inRun = true
			continue
		}
		inRun = false
		start := b.Len()
		b.WriteRune(r)
		for j := start; j < b.Len(); j++ {
			offs = append(offs, i)
		}
	}
	return b.String(), offs
}

func mapAll(normPositions []int, offs []int) []int {
	out := make([]int, 0, len(normPositions))
	for _, np := range normPositions {
		out = append(out, offs[np])
	}
	return out
}
// #endregion whitespace

// #region sentence
// locateSentence is tier 3: match only the anchor's first sentence-like
// fragment, then verify the anchor's trailing words appear within a small
// window past it. Confidence 0.8.
func locateSentence(doc string, a Anchor, minStart int, cfg Config) *Range {
	target := anchorTarget(a)
	frag, rest := splitFirstSentence(target)
	if frag == "" || strings.TrimSpace(rest) == "" {
		return nil
	}
	floor := minStart
	if a.IsInsertion() {
		floor = 0
	}
	pos := selectOccurrence(doc, occurrences(doc, frag, floor), len(frag), a)
	if pos < 0 {
		return nil
	}
	fragEnd := pos + len(frag)

	trailing := lastWords(target, cfg.KeyPhraseWords)
	if trailing == "" {
		return nil
	}
	windowEnd := fragEnd + cfg.SentenceWindow
	if windowEnd > len(doc) {
		windowEnd = len(doc)
	}
	idx := strings.Index(doc[fragEnd:windowEnd], trailing)
	if idx < 0 {
		return nil
	}
	return &Range{
		Start:      pos,
		End:        fragEnd + idx + len(trailing),
		Confidence: 0.8,
		Strategy:   StrategySentence,
	}
}

// splitFirstSentence cuts s at the first terminal punctuation mark,
// returning the fragment including the mark and the remainder.
func splitFirstSentence(s string) (frag, rest string) {
	idx := strings.IndexAny(s, ".!?")
	if idx < 0 || idx+1 >= len(s) {
		return "", ""
	}
	return s[:idx+1], s[idx+1:]
}

func lastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
// #endregion sentence

// #region context
// locateContext resolves anchors that carry only left/right context and no
// anchor text, bridging the span between the two contexts. Confidence 0.75.
func locateContext(doc string, a Anchor, minStart int, cfg Config) *Range {
	if anchorTarget(a) != "" {
		return nil
	}
	switch {
	case a.LeftContext != "" && a.RightContext != "":
		pos := selectOccurrence(doc, occurrences(doc, a.LeftContext, minStart), len(a.LeftContext), a)
		if pos < 0 {
			return nil
		}
		start := pos + len(a.LeftContext)
		limit := start + cfg.MaxBridge
		if limit > len(doc) {
			limit = len(doc)
		}
		ri := strings.Index(doc[start:limit], a.RightContext)
		if ri < 0 {
			return nil
		}
		return &Range{Start: start, End: start + ri, Confidence: 0.75, Strategy: StrategyContext}
	case a.LeftContext != "":
		pos := selectOccurrence(doc, occurrences(doc, a.LeftContext, minStart), len(a.LeftContext), a)
		if pos < 0 {
			return nil
		}
		p := pos + len(a.LeftContext)
		return &Range{Start: p, End: p, Confidence: 0.75, Strategy: StrategyContext}
	case a.RightContext != "":
		pos := selectOccurrence(doc, occurrences(doc, a.RightContext, minStart), len(a.RightContext), a)
		if pos < 0 {
			return nil
		}
		return &Range{Start: pos, End: pos, Confidence: 0.75, Strategy: StrategyContext}
	}
	return nil
}
// #endregion context

// #region keyphrase
// locateKeyPhrase is tier 4: match the anchor's first and last few words
// independently and bridge the region between them, tolerating paraphrased
// filler in the middle. Confidence 0.7.
func locateKeyPhrase(doc string, a Anchor, minStart int, cfg Config) *Range {
	target := anchorTarget(a)
	words := strings.Fields(target)
	if len(words) <= 2*cfg.KeyPhraseWords {
		return nil
	}
	head := strings.Join(words[:cfg.KeyPhraseWords], " ")
	tail := strings.Join(words[len(words)-cfg.KeyPhraseWords:], " ")

	floor := minStart
	if a.IsInsertion() {
		floor = 0
	}
	pos := selectOccurrence(doc, occurrences(doc, head, floor), len(head), a)
	if pos < 0 {
		return nil
	}
	headEnd := pos + len(head)
	limit := headEnd + len(target) + cfg.MaxBridge
	if limit > len(doc) {
		limit = len(doc)
	}
	ti := strings.Index(doc[headEnd:limit], tail)
	if ti < 0 {
		return nil
	}
	return &Range{
		Start:      pos,
		End:        headEnd + ti + len(tail),
		Confidence: 0.7,
		Strategy:   StrategyKeyPhrase,
	}
}
// #endregion keyphrase

// #region occurrence-selection
func anchorTarget(a Anchor) string {
	if a.ExactText != "" {
		return a.ExactText
	}
	return a.InsertAfterText
}

// occurrences returns every match position of target in doc at or after floor.
func occurrences(doc, target string, floor int) []int {
	var out []int
	if target == "" || floor > len(doc) {
		return out
	}
	search := floor
	for {
		idx := strings.Index(doc[search:], target)
		if idx < 0 {
			break
		}
		pos := search + idx
		out = append(out, pos)
		search = pos + 1
		if search >= len(doc) {
			break
		}
	}
	return out
}

// selectOccurrence picks which of several identical matches to use.
// An explicit OccurrenceIndex wins; otherwise, when the anchor carries
// local context, each candidate is scored by how much of that context
// matches around it and the best scorer wins, earlier on ties.
func selectOccurrence(doc string, positions []int, targetLen int, a Anchor) int {
	if len(positions) == 0 {
		return -1
	}
	if a.OccurrenceIndex > 0 {
		if a.OccurrenceIndex >= len(positions) {
			return -1
		}
		return positions[a.OccurrenceIndex]
	}
	if len(positions) == 1 || (a.LeftContext == "" && a.RightContext == "") {
		return positions[0]
	}

	best, bestScore := positions[0], -1
	for _, pos := range positions {
		score := contextScore(doc, pos, targetLen, a.LeftContext, a.RightContext)
		if score > bestScore {
			best, bestScore = pos, score
		}
	}
	return best
}

// contextScore measures the longest suffix of left matching the text
// immediately before pos plus the longest prefix of right matching the
// text immediately after pos+targetLen.
func contextScore(doc string, pos, targetLen int, left, right string) int {
	score := 0
	for i := 1; i <= len(left) && i <= pos; i++ {
		if doc[pos-i:pos] != left[len(left)-i:] {
			break
		}
		score = i
	}
	after := pos + targetLen
	prefix := 0
	for i := 1; i <= len(right) && after+i <= len(doc); i++ {
		if doc[after:after+i] != right[:i] {
			break
		}
		prefix = i
	}
	return score + prefix
}
// #endregion occurrence-selection
