package export

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Service provides sentence list export
type Service struct {
	archive   Archiver
	renderPDF func(ctx context.Context, html, title string) (*Result, error)
	now       func() time.Time
}

// NewService creates an export service. archive may be nil.
func NewService(archive Archiver) *Service {
	return &Service{archive: archive, renderPDF: renderPDF, now: time.Now}
}

// Export renders sentences in the requested format. Archival failures are
// logged and do not fail the export.
func (s *Service) Export(ctx context.Context, req Request, sentences []Sentence) (*Result, error) {
	var (
		result *Result
		err    error
	)
	switch req.Format {
	case FormatText, "":
		result = Text(sentences)
	case FormatPDF:
		title := req.Title
		if title == "" {
			title = "Sentences"
		}
		var html string
		html, err = RenderSentencesHTML(TemplateData{
			Title:       title,
			Group:       req.Group,
			GeneratedAt: s.now(),
			Sentences:   sentences,
		})
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		result, err = s.renderPDF(ctx, html, title)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	if s.archive != nil {
		if key, err := s.archive.Put(ctx, result); err != nil {
			log.Printf("export: %v", err)
		} else {
			log.Printf("export: archived %s", key)
		}
	}
	return result, nil
}
