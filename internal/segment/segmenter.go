// Package segment splits raw document text into typed, ordered pieces
// using per-document-type heuristics. Résumés are scanned for section
// headers, personal notes accumulate into categories, company research
// is classified paragraph by paragraph. Anything else falls back to a
// fixed-size recursive split.
package segment

import (
	"strings"

	"github.com/warmintro/warmintro/internal/document"
)

// ChunkTypeGeneral is the fallback chunk-type for documents without a
// richer vocabulary.
const ChunkTypeGeneral = "general"

// Default sizing. Section blocks above SectionLimit are sub-split at a
// sentence or line boundary, the generic splitter uses WindowSize
// windows with Overlap carry-over.
const (
	DefaultSectionLimit = 400
	DefaultMinLength    = 10
	DefaultWindowSize   = 500
	DefaultOverlap      = 50
)

// Piece is one segmented excerpt, in document order.
type Piece struct {
	Content   string
	ChunkType string
	Metadata  map[string]string
}

// Segmenter holds the sizing knobs for all segmentation strategies.
// The zero value is not usable; construct with New.
type Segmenter struct {
	sectionLimit int
	minLength    int
	windowSize   int
	overlap      int
	markdown     *markdownSplitter
}

// New creates a Segmenter with the default sizing.
func New() *Segmenter {
	return &Segmenter{
		sectionLimit: DefaultSectionLimit,
		minLength:    DefaultMinLength,
		windowSize:   DefaultWindowSize,
		overlap:      DefaultOverlap,
		markdown:     newMarkdownSplitter(),
	}
}

// Segment splits text according to the document type's heuristic.
// Every non-empty input yields at least one piece: typed heuristics that
// produce nothing degrade to the generic splitter.
func (s *Segmenter) Segment(text string, docType document.Type) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []Piece
	switch docType {
	case document.TypeResume:
		pieces = s.segmentResume(text)
	case document.TypePersonalInfo:
		pieces = s.segmentPersonalInfo(text)
	case document.TypeCompanyResearch:
		pieces = s.segmentCompanyResearch(text)
	case document.TypeNote:
		pieces = s.segmentNote(text)
	}

	if len(pieces) == 0 {
		pieces = s.genericSplit(text, ChunkTypeGeneral)
	}
	return pieces
}

// resumeSections maps section tags to the header keywords that select
// them. Checked in order so the first matching keyword wins.
var resumeSections = []struct {
	tag      string
	keywords []string
}{
	{"summary", []string{"summary", "objective"}},
	{"skills", []string{"skill", "technical"}},
	{"experience", []string{"experience", "work", "employment"}},
	{"education", []string{"education", "qualification"}},
	{"achievements", []string{"achievement", "award", "honor"}},
	{"projects", []string{"project", "portfolio"}},
}

func resumeSectionFor(line string) (string, bool) {
	lower := strings.ToLower(line)
	for _, sec := range resumeSections {
		for _, kw := range sec.keywords {
			if strings.Contains(lower, kw) {
				return sec.tag, true
			}
		}
	}
	return "", false
}

// segmentResume scans lines keeping a current-section pointer. A line
// containing a section keyword flushes the accumulated block under the
// previous section and switches the pointer; the keyword line itself
// belongs to the new section so inline headers like "Skills: Go" keep
// their content.
func (s *Segmenter) segmentResume(text string) []Piece {
	current := "personal_details"
	var block []string
	var pieces []Piece

	flush := func() {
		content := strings.TrimSpace(strings.Join(block, "\n"))
		block = block[:0]
		if content == "" {
			return
		}
		for _, sub := range s.subSplit(content) {
			if len(sub) < s.minLength {
				continue
			}
			pieces = append(pieces, Piece{
				Content:   sub,
				ChunkType: current,
				Metadata:  map[string]string{"section": current},
			})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if tag, ok := resumeSectionFor(line); ok {
			flush()
			current = tag
		}
		block = append(block, line)
	}
	flush()

	return pieces
}

// subSplit breaks a section block longer than sectionLimit at the
// nearest sentence or line boundary at or after 50% of the limit, to
// avoid mid-sentence cuts.
func (s *Segmenter) subSplit(text string) []string {
	var out []string
	for len(text) > s.sectionLimit {
		cut := sentenceBoundaryAfter(text, s.sectionLimit/2)
		if cut < 0 || cut >= len(text) {
			break
		}
		head := strings.TrimSpace(text[:cut])
		if head != "" {
			out = append(out, head)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// sentenceBoundaryAfter returns the index just past the first sentence
// end or newline at or after from, or -1 if there is none.
func sentenceBoundaryAfter(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return -1
}

// personalCategories maps category tags to switching keywords.
var personalCategories = []struct {
	tag      string
	keywords []string
}{
	{"preferences", []string{"prefer", "like", "enjoy"}},
	{"goals", []string{"goal", "aspire", "aim"}},
	{"strengths", []string{"strength", "good at", "expert"}},
	{"values", []string{"value", "important", "principle"}},
}

func personalCategoryFor(line string) (string, bool) {
	lower := strings.ToLower(line)
	for _, cat := range personalCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.tag, true
			}
		}
	}
	return "", false
}

// personalCategoryOrder fixes emission order for the accumulated
// categories.
var personalCategoryOrder = []string{"background", "preferences", "goals", "strengths", "values"}

// segmentPersonalInfo accumulates stream-of-consciousness text into
// categories. Unlike résumé sections, categories are not flushed on
// switch: all lines for a category across the whole document end up in
// one chunk.
func (s *Segmenter) segmentPersonalInfo(text string) []Piece {
	current := "background"
	buckets := make(map[string][]string)

	for _, line := range strings.Split(text, "\n") {
		if tag, ok := personalCategoryFor(line); ok {
			current = tag
		}
		if strings.TrimSpace(line) != "" {
			buckets[current] = append(buckets[current], line)
		}
	}

	var pieces []Piece
	for _, tag := range personalCategoryOrder {
		content := strings.TrimSpace(strings.Join(buckets[tag], "\n"))
		if len(content) < s.minLength {
			continue
		}
		pieces = append(pieces, Piece{
			Content:   content,
			ChunkType: tag,
			Metadata:  map[string]string{"section": tag},
		})
	}
	return pieces
}

// companyCategories classify a paragraph independently of its
// neighbours. First match wins; no match means overview.
var companyCategories = []struct {
	tag      string
	keywords []string
}{
	{"culture", []string{"culture", "mission", "team", "environment", "diversity"}},
	{"products", []string{"product", "service", "platform", "offering", "customer"}},
	{"tech_stack", []string{"tech", "stack", "engineering", "infrastructure", "built with"}},
	{"recent_news", []string{"news", "announc", "launch", "funding", "acquisition", "recent"}},
	{"leadership", []string{"ceo", "cto", "founder", "leadership", "executive"}},
}

func companyCategoryFor(paragraph string) string {
	lower := strings.ToLower(paragraph)
	for _, cat := range companyCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.tag
			}
		}
	}
	return "overview"
}

// segmentCompanyResearch splits on blank-line-delimited paragraphs and
// classifies each one statelessly, one chunk per paragraph.
func (s *Segmenter) segmentCompanyResearch(text string) []Piece {
	var pieces []Piece
	for _, paragraph := range splitParagraphs(text) {
		paragraph = strings.TrimSpace(paragraph)
		if len(paragraph) < s.minLength {
			continue
		}
		tag := companyCategoryFor(paragraph)
		pieces = append(pieces, Piece{
			Content:   paragraph,
			ChunkType: tag,
			Metadata:  map[string]string{"section": tag},
		})
	}
	return pieces
}

// segmentNote handles free-form notes. Notes with markdown headings are
// split at heading boundaries so retrieval sees topically coherent
// sections; anything else goes through the generic splitter.
func (s *Segmenter) segmentNote(text string) []Piece {
	if !looksLikeMarkdown(text) {
		return s.genericSplit(text, ChunkTypeGeneral)
	}

	sections, err := s.markdown.split([]byte(text))
	if err != nil || len(sections) == 0 {
		return s.genericSplit(text, ChunkTypeGeneral)
	}

	var pieces []Piece
	for _, sec := range sections {
		content := strings.TrimSpace(sec.Content)
		if len(content) < s.minLength {
			continue
		}
		meta := map[string]string{"section": ChunkTypeGeneral}
		if sec.HeaderPath != "" {
			meta["heading"] = sec.HeaderPath
		}
		if len(content) <= s.windowSize {
			pieces = append(pieces, Piece{Content: content, ChunkType: ChunkTypeGeneral, Metadata: meta})
			continue
		}
		for _, sub := range s.genericSplit(content, ChunkTypeGeneral) {
			if sec.HeaderPath != "" {
				sub.Metadata["heading"] = sec.HeaderPath
			}
			pieces = append(pieces, sub)
		}
	}
	return pieces
}

func looksLikeMarkdown(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ") {
			return true
		}
	}
	return false
}

// genericSplit is the fixed-size recursive fallback: windowSize windows
// with overlap carry-over, preferring paragraph, then sentence, then
// space boundaries. Guarantees at least one piece for non-empty input.
func (s *Segmenter) genericSplit(text, tag string) []Piece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var pieces []Piece
	emit := func(content string) {
		content = strings.TrimSpace(content)
		if len(content) < s.minLength {
			return
		}
		pieces = append(pieces, Piece{
			Content:   content,
			ChunkType: tag,
			Metadata:  map[string]string{"section": tag},
		})
	}

	start := 0
	for start < len(text) {
		end := start + s.windowSize
		if end >= len(text) {
			emit(text[start:])
			break
		}
		end = breakPoint(text, start, end)
		emit(text[start:end])

		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	if len(pieces) == 0 {
		// Non-empty input must still produce a chunk even when the
		// whole text is below the minimum length.
		pieces = append(pieces, Piece{
			Content:   text,
			ChunkType: tag,
			Metadata:  map[string]string{"section": tag},
		})
	}
	return pieces
}

// breakPoint picks a cut position in (start, limit] preferring a
// paragraph break, then a sentence end, then a space, searching no
// further back than half a window. Falls back to a hard cut at limit.
func breakPoint(text string, start, limit int) int {
	floor := start + (limit-start)/2
	window := text[floor:limit]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}
	if i := strings.LastIndex(window, ". "); i >= 0 {
		return floor + i + 2
	}
	if i := strings.LastIndex(window, " "); i >= 0 {
		return floor + i + 1
	}
	return limit
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	var current []string
	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return paragraphs
}
