// Package synthesis builds the generation prompt from a context bundle,
// invokes the text generation service, parses its free-form response,
// and attaches source citations.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/warmintro/warmintro/internal/assembly"
	"github.com/warmintro/warmintro/internal/document"
)

const (
	subjectMarker = "Subject:"
	sourcesMarker = "SOURCES USED:"

	previewLength = 120
	topSourcesCap = 5
)

const systemInstruction = `You are an assistant that writes personalized job outreach emails for a candidate. Ground every claim strictly in the provided context sections. Never invent employers, dates, skills, or company facts that are not in the context.`

// Request carries the caller's parameters for one synthesis.
type Request struct {
	Instruction   string
	TargetCompany string
	TargetRole    string
	EmailType     string
}

// Citation links generated output back to one grounding chunk.
type Citation struct {
	DocumentTitle     string `json:"document_title"`
	DocumentType      string `json:"document_type"`
	ChunkType         string `json:"chunk_type"`
	SimilarityPercent int    `json:"similarity_percent"`
	ContentPreview    string `json:"content_preview"`
}

// SourceGroup collects a document's citations under its title.
type SourceGroup struct {
	DocumentTitle string     `json:"document_title"`
	Citations     []Citation `json:"citations"`
}

// Result is the parsed, attributed synthesis output.
type Result struct {
	Subject     string        `json:"subject"`
	Body        string        `json:"body"`
	SourcesNote string        `json:"sources_note,omitempty"`
	Sources     []SourceGroup `json:"sources"`
	TopSources  []Citation    `json:"top_sources"`
}

// Orchestrator drives prompt rendering, generation, and parsing.
type Orchestrator struct {
	generator Generator
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(generator Generator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{generator: generator, logger: logger}
}

// Synthesize renders the prompt, invokes the generation service, and
// parses the result. A generation failure is fatal to the request; a
// malformed response is recovered locally (default subject, whole
// response as body). Zero citations is a success, not an error.
func (o *Orchestrator) Synthesize(ctx context.Context, bundle *assembly.Bundle, req Request) (*Result, error) {
	prompt := renderPrompt(bundle, req)

	raw, err := o.generator.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	subject, body, sourcesNote := parseResponse(raw, defaultSubject(req))

	result := &Result{
		Subject:     subject,
		Body:        body,
		SourcesNote: sourcesNote,
	}
	result.Sources, result.TopSources = buildCitations(bundle.Chunks)

	o.logger.Debug("synthesis complete",
		"chunks_used", len(bundle.Chunks),
		"sources", len(result.Sources),
	)
	return result, nil
}

// renderPrompt enumerates populated bundle sections under fixed labels,
// skipping empty ones. Populated keys without their own label fold into
// OTHER CONTEXT.
func renderPrompt(bundle *assembly.Bundle, req Request) string {
	var b strings.Builder

	writeSection := func(label string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString(label)
		b.WriteString(":\n")
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	writeSection("CANDIDATE SKILLS", bundle.Resume["skills"])
	writeSection("CANDIDATE EXPERIENCE", bundle.Resume["experience"])
	writeSection("CANDIDATE ACHIEVEMENTS", bundle.Resume["achievements"])
	writeSection("CANDIDATE GOALS", bundle.Personal["goals"])
	writeSection("CANDIDATE STRENGTHS", bundle.Personal["strengths"])
	writeSection("COMPANY OVERVIEW", bundle.Company["overview"])
	writeSection("COMPANY CULTURE", bundle.Company["culture"])
	writeSection("OTHER CONTEXT", otherContext(bundle))

	emailType := req.EmailType
	if emailType == "" {
		emailType = "outreach"
	}
	fmt.Fprintf(&b, "Write a %s email", emailType)
	if req.TargetRole != "" {
		fmt.Fprintf(&b, " for the %s role", req.TargetRole)
	}
	if req.TargetCompany != "" {
		fmt.Fprintf(&b, " at %s", req.TargetCompany)
	}
	b.WriteString(".\n")
	if req.Instruction != "" {
		b.WriteString(req.Instruction)
		b.WriteString("\n")
	}
	b.WriteString(`
Keep the email under 200 words, professional but warm, and reference specific examples from the context sections above rather than generic claims.
Start your reply with a line "Subject: ..." and end with a line "SOURCES USED: ..." naming the context sections you drew on.`)

	return b.String()
}

// otherContext gathers populated sections that have no dedicated label.
func otherContext(bundle *assembly.Bundle) []string {
	var out []string
	labeled := map[string]bool{"skills": true, "experience": true, "achievements": true}
	for _, key := range []string{"summary", "personal_details", "education", "projects"} {
		if !labeled[key] {
			out = append(out, bundle.Resume[key]...)
		}
	}
	for _, key := range []string{"background", "preferences", "values"} {
		out = append(out, bundle.Personal[key]...)
	}
	for _, key := range []string{"products", "tech_stack", "recent_news", "leadership"} {
		out = append(out, bundle.Company[key]...)
	}
	out = append(out, bundle.Other...)
	return out
}

func defaultSubject(req Request) string {
	role := req.TargetRole
	if role == "" {
		role = "the role"
	}
	return fmt.Sprintf("Application for %s", role)
}

// parseResponse scans the raw generation output line by line. A line
// starting with the subject marker sets the subject, a line starting
// with the sources marker sets the sources note and stops body
// accumulation; every other non-empty line joins the body. Tolerant by
// design: generation services guarantee no output structure.
func parseResponse(raw, fallbackSubject string) (subject, body, sourcesNote string) {
	subject = fallbackSubject

	var bodyLines []string
	sourcesSeen := false

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, subjectMarker) {
			if s := strings.TrimSpace(strings.TrimPrefix(trimmed, subjectMarker)); s != "" {
				subject = s
			}
			continue
		}
		if strings.HasPrefix(trimmed, sourcesMarker) {
			sourcesNote = strings.TrimSpace(strings.TrimPrefix(trimmed, sourcesMarker))
			sourcesSeen = true
			continue
		}
		if !sourcesSeen {
			bodyLines = append(bodyLines, trimmed)
		}
	}

	return subject, strings.Join(bodyLines, "\n"), sourcesNote
}

// buildCitations emits one citation per consumed chunk, grouped by
// document title in ranked order, plus a flat top-5 for quick display.
func buildCitations(chunks []document.ScoredChunk) ([]SourceGroup, []Citation) {
	groups := make([]SourceGroup, 0)
	groupIndex := make(map[string]int)
	var flat []Citation

	for _, sc := range chunks {
		citation := Citation{
			DocumentTitle:     sc.Chunk.DocumentTitle,
			DocumentType:      string(sc.Chunk.DocumentType),
			ChunkType:         sc.Chunk.ChunkType,
			SimilarityPercent: int(sc.Score*100 + 0.5),
			ContentPreview:    preview(sc.Chunk.Content),
		}
		flat = append(flat, citation)

		at, ok := groupIndex[citation.DocumentTitle]
		if !ok {
			at = len(groups)
			groupIndex[citation.DocumentTitle] = at
			groups = append(groups, SourceGroup{DocumentTitle: citation.DocumentTitle})
		}
		groups[at].Citations = append(groups[at].Citations, citation)
	}

	if len(flat) > topSourcesCap {
		flat = flat[:topSourcesCap]
	}
	return groups, flat
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= previewLength {
		return content
	}
	return content[:previewLength] + "..."
}
