package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/warmintro/warmintro/internal/assembly"
	"github.com/warmintro/warmintro/internal/document"
)

type fakeGenerator struct {
	response   string
	err        error
	lastPrompt string
	lastSystem string
}

func (g *fakeGenerator) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	g.lastSystem = systemInstruction
	g.lastPrompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func bundleWith(chunks ...document.ScoredChunk) *assembly.Bundle {
	return assembly.Assemble(chunks)
}

func resumeChunk(chunkType, title, content string, score float64) document.ScoredChunk {
	return document.ScoredChunk{
		Chunk: &document.Chunk{
			DocumentTitle: title,
			DocumentType:  document.TypeResume,
			ChunkType:     chunkType,
			Content:       content,
		},
		Score: score,
	}
}

func TestSynthesize_ParsesStructuredResponse(t *testing.T) {
	gen := &fakeGenerator{response: "Subject: Re: Hello\nHi there\nSOURCES USED: resume"}
	o := NewOrchestrator(gen, nil)

	result, err := o.Synthesize(context.Background(), bundleWith(), Request{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if result.Subject != "Re: Hello" {
		t.Errorf("Subject: expected 'Re: Hello', got %q", result.Subject)
	}
	if result.Body != "Hi there" {
		t.Errorf("Body: expected 'Hi there', got %q", result.Body)
	}
	if result.SourcesNote != "resume" {
		t.Errorf("SourcesNote: expected 'resume', got %q", result.SourcesNote)
	}
}

func TestSynthesize_MalformedResponseRecovered(t *testing.T) {
	gen := &fakeGenerator{response: "Just a plain email body without any markers at all."}
	o := NewOrchestrator(gen, nil)

	result, err := o.Synthesize(context.Background(), bundleWith(), Request{TargetRole: "Staff Engineer"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if result.Subject != "Application for Staff Engineer" {
		t.Errorf("Default subject: got %q", result.Subject)
	}
	if result.Body != "Just a plain email body without any markers at all." {
		t.Errorf("Body: got %q", result.Body)
	}
}

func TestSynthesize_DefaultSubjectWithoutRole(t *testing.T) {
	gen := &fakeGenerator{response: "body only"}
	o := NewOrchestrator(gen, nil)

	result, err := o.Synthesize(context.Background(), bundleWith(), Request{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if result.Subject != "Application for the role" {
		t.Errorf("Subject: got %q", result.Subject)
	}
}

func TestSynthesize_BodyStopsAtSourcesMarker(t *testing.T) {
	gen := &fakeGenerator{response: "Subject: Hi\nLine one\nLine two\nSOURCES USED: resume, notes\nTrailing text after sources"}
	o := NewOrchestrator(gen, nil)

	result, err := o.Synthesize(context.Background(), bundleWith(), Request{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if result.Body != "Line one\nLine two" {
		t.Errorf("Body should stop at sources marker, got %q", result.Body)
	}
	if result.SourcesNote != "resume, notes" {
		t.Errorf("SourcesNote: got %q", result.SourcesNote)
	}
}

func TestSynthesize_GenerationFailureIsFatal(t *testing.T) {
	genErr := errors.New("upstream down")
	o := NewOrchestrator(&fakeGenerator{err: genErr}, nil)

	_, err := o.Synthesize(context.Background(), bundleWith(), Request{})
	if !errors.Is(err, genErr) {
		t.Errorf("Expected generation error to propagate, got %v", err)
	}
}

func TestSynthesize_CitationsGroupedByDocument(t *testing.T) {
	gen := &fakeGenerator{response: "Subject: Hi\nBody"}
	o := NewOrchestrator(gen, nil)

	bundle := bundleWith(
		resumeChunk("skills", "My Resume", "Go, Python, Kubernetes", 0.914),
		resumeChunk("experience", "My Resume", "Led the billing migration", 0.85),
		resumeChunk("summary", "Old Resume", "Ten years of backend work", 0.70),
	)

	result, err := o.Synthesize(context.Background(), bundle, Request{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(result.Sources) != 2 {
		t.Fatalf("Expected 2 source groups, got %d", len(result.Sources))
	}
	if result.Sources[0].DocumentTitle != "My Resume" || len(result.Sources[0].Citations) != 2 {
		t.Errorf("Group 0: %+v", result.Sources[0])
	}
	if result.Sources[1].DocumentTitle != "Old Resume" {
		t.Errorf("Group 1: %+v", result.Sources[1])
	}

	first := result.Sources[0].Citations[0]
	if first.SimilarityPercent != 91 {
		t.Errorf("SimilarityPercent: expected 91, got %d", first.SimilarityPercent)
	}
	if first.ChunkType != "skills" {
		t.Errorf("ChunkType: got %q", first.ChunkType)
	}

	if len(result.TopSources) != 3 {
		t.Errorf("TopSources: expected 3, got %d", len(result.TopSources))
	}
}

func TestSynthesize_TopSourcesCapped(t *testing.T) {
	gen := &fakeGenerator{response: "Subject: Hi\nBody"}
	o := NewOrchestrator(gen, nil)

	var chunks []document.ScoredChunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, resumeChunk("experience", "My Resume", strings.Repeat("x", i+10), 0.9))
	}

	result, err := o.Synthesize(context.Background(), bundleWith(chunks...), Request{})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(result.TopSources) != topSourcesCap {
		t.Errorf("TopSources: expected %d, got %d", topSourcesCap, len(result.TopSources))
	}
}

func TestSynthesize_EmptyBundleStillGenerates(t *testing.T) {
	gen := &fakeGenerator{response: "Subject: Hi\nA generic but honest email."}
	o := NewOrchestrator(gen, nil)

	result, err := o.Synthesize(context.Background(), bundleWith(), Request{TargetCompany: "Acme"})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Expected no sources, got %d", len(result.Sources))
	}
	if result.Body == "" {
		t.Errorf("Expected a body even without context")
	}
}

func TestRenderPrompt_SectionsAndDirectives(t *testing.T) {
	bundle := bundleWith(
		resumeChunk("skills", "My Resume", "Go, Python", 0.9),
		document.ScoredChunk{
			Chunk: &document.Chunk{
				DocumentType: document.TypeCompanyResearch,
				ChunkType:    "culture",
				Content:      "Remote-first team",
			},
			Score: 0.8,
		},
	)

	prompt := renderPrompt(bundle, Request{
		TargetCompany: "Acme",
		TargetRole:    "Staff Engineer",
		Instruction:   "Mention my open source work",
	})

	for _, want := range []string{
		"CANDIDATE SKILLS:",
		"- Go, Python",
		"COMPANY CULTURE:",
		"- Remote-first team",
		"Staff Engineer",
		"at Acme",
		"Mention my open source work",
		"Subject:",
		"SOURCES USED:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "CANDIDATE GOALS") {
		t.Errorf("Empty sections should be skipped")
	}
}

func TestRenderPrompt_UnlabeledSectionsFoldIntoOther(t *testing.T) {
	bundle := bundleWith(
		resumeChunk("education", "My Resume", "BSc Physics", 0.8),
	)

	prompt := renderPrompt(bundle, Request{})
	if !strings.Contains(prompt, "OTHER CONTEXT:") || !strings.Contains(prompt, "- BSc Physics") {
		t.Errorf("Education should fold into OTHER CONTEXT:\n%s", prompt)
	}
}

func TestPreview_Truncates(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got := preview(long)
	if len(got) != previewLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("Preview length %d: %q", len(got), got)
	}
}
