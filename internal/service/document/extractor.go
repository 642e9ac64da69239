package document

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/prasetyawibawa/ai-interview-coach/backend/internal/service/interview"
)

// DefaultCandidateName is used whenever the CV yields no usable name.
const DefaultCandidateName = "Candidate"

// Generator is the model client used for name extraction.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor turns an uploaded CV into plain text and a candidate name.
// Extraction failure is non-fatal by contract: the interview starts with an
// empty CV and the default name instead of aborting.
type Extractor struct {
	gen Generator
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// ExtractCV parses the uploaded PDF bytes and resolves the candidate name
// from the extracted text. Never returns an error; failures degrade.
func (e *Extractor) ExtractCV(ctx context.Context, data []byte) (text, name string) {
	text, err := extractText(data)
	if err != nil {
		log.Printf("[document] CV extraction failed, continuing without CV: %v", err)
		return "", DefaultCandidateName
	}

	return text, e.resolveName(ctx, text)
}

func (e *Extractor) resolveName(ctx context.Context, cvText string) string {
	if e.gen == nil || strings.TrimSpace(cvText) == "" {
		return DefaultCandidateName
	}

	reply, err := e.gen.Generate(ctx, interview.NameExtractionPrompt(cvText))
	if err != nil {
		log.Printf("[document] name extraction failed, using default: %v", err)
		return DefaultCandidateName
	}

	name := strings.TrimSpace(reply)
	if name == "" {
		return DefaultCandidateName
	}
	return name
}

func extractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
