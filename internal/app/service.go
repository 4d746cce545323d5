package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"tts/api/internal/config"
	"tts/api/internal/export"
	"tts/api/internal/library"
	"tts/api/internal/review"
	"tts/api/internal/search"
	"tts/api/internal/speech"
)

type CreateSentenceInput struct {
	Text  string `json:"text"`
	Group string `json:"group"`
}

type MoveSentenceInput struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type readinessCheck struct {
	name string
	ping func(context.Context) error
}

type Service struct {
	cfg      config.Config
	library  *library.Library
	speaker  speech.Speaker
	exporter *export.Service
	search   *search.Service
	checks   []readinessCheck

	review      *review.Cursor
	reviewMu    sync.Mutex
	reviewGroup string
}

func New(cfg config.Config, lib *library.Library, speaker speech.Speaker, exporter *export.Service, searchSvc *search.Service) *Service {
	if exporter == nil {
		exporter = export.NewService(nil)
	}
	if searchSvc == nil {
		searchSvc = search.NewService(nil, nil)
	}
	s := &Service{
		cfg:      cfg,
		library:  lib,
		speaker:  speaker,
		exporter: exporter,
		search:   searchSvc,
		review:   review.NewCursor(lib, lib.Sentences()),
	}
	lib.Watch(s.onSentences)
	s.onSentences(lib.Sentences())
	return s
}

// AddReadinessCheck registers a dependency reported by /api/ready.
func (s *Service) AddReadinessCheck(name string, ping func(context.Context) error) {
	s.checks = append(s.checks, readinessCheck{name: name, ping: ping})
}

// Readiness pings every registered dependency.
func (s *Service) Readiness(ctx context.Context) (map[string]any, bool) {
	ready := true
	checks := map[string]any{}
	for _, check := range s.checks {
		if err := check.ping(ctx); err != nil {
			ready = false
			checks[check.name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[check.name] = map[string]any{"status": "ok"}
	}
	return checks, ready
}

// onSentences runs after every sentences snapshot. It must not write to the
// store; the snapshot may be delivered from inside a write.
func (s *Service) onSentences(items []library.Sentence) {
	records := make([]search.SentenceRecord, 0, len(items))
	for _, item := range items {
		records = append(records, search.SentenceRecord{
			ID:          item.ID,
			Text:        item.Text,
			Group:       item.GroupKey(),
			IsDifficult: item.IsDifficult,
		})
	}
	s.search.Sync(records)
	s.resetReview()
}

// resetReview reloads the review list in display order for the current
// filter. reviewMu is held so a concurrent group switch cannot interleave.
func (s *Service) resetReview() {
	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()
	s.review.Reset(s.library.FilteredByGroup(s.reviewGroup))
}

func (s *Service) ListSentences(group string) map[string]any {
	items := s.library.FilteredByGroup(group)
	return map[string]any{"sentences": items, "total": len(items), "group": group}
}

func (s *Service) DifficultSentences() map[string]any {
	items := s.library.DifficultOnly()
	return map[string]any{"sentences": items, "total": len(items)}
}

func (s *Service) AddSentence(ctx context.Context, input CreateSentenceInput) (map[string]any, error) {
	id, err := s.library.AddSentence(ctx, input.Text, input.Group)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "created": id != ""}, nil
}

func (s *Service) DeleteSentence(ctx context.Context, id string) error {
	return s.library.DeleteSentence(ctx, id)
}

// EditSentence moves the sentence into the draft and deletes the stored copy.
func (s *Service) EditSentence(ctx context.Context, id string) (map[string]any, error) {
	sentence, ok := s.library.Sentence(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", library.ErrSentenceNotFound, id)
	}
	if err := s.library.EditSentence(ctx, sentence); err != nil {
		return nil, err
	}
	return s.DraftPayload(), nil
}

func (s *Service) CommitEdit(ctx context.Context) (map[string]any, error) {
	id, err := s.library.CommitEdit(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "created": id != ""}, nil
}

func (s *Service) DraftPayload() map[string]any {
	var pending any
	if edit := s.library.PendingEdit(); edit != nil {
		pending = edit
	}
	return map[string]any{"draft": s.library.Draft(), "pendingEdit": pending}
}

func (s *Service) SetDraft(draft library.Draft) map[string]any {
	s.library.SetDraft(draft.Text, draft.Group)
	return s.DraftPayload()
}

func (s *Service) MarkDifficult(ctx context.Context, id string) error {
	return s.library.MarkDifficult(ctx, id)
}

func (s *Service) MoveSentence(input MoveSentenceInput) (map[string]any, error) {
	if err := s.library.MoveSentence(input.From, input.To); err != nil {
		if errors.Is(err, library.ErrIndexOutOfRange) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), map[string]any{
				"from":  input.From,
				"to":    input.To,
				"total": len(s.library.Sentences()),
			})
		}
		return nil, err
	}
	s.resetReview()
	return s.ListSentences(""), nil
}

// Speak reads a stored sentence aloud. An empty locale uses the configured
// default.
func (s *Service) Speak(ctx context.Context, id, locale string) error {
	sentence, ok := s.library.Sentence(id)
	if !ok {
		return fmt.Errorf("%w: %s", library.ErrSentenceNotFound, id)
	}
	if s.speaker == nil {
		return speech.ErrUnavailable
	}
	if strings.TrimSpace(locale) == "" {
		locale = s.cfg.SpeechLocale
	}
	return s.speaker.Speak(ctx, sentence.Text, locale)
}

func (s *Service) ListGroups() map[string]any {
	groups := s.library.Groups()
	return map[string]any{"groups": groups, "total": len(groups)}
}

func (s *Service) CreateGroup(ctx context.Context, name string) (map[string]any, error) {
	id, err := s.library.CreateGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "created": id != ""}, nil
}

// RenameGroup renames the group and every sentence filed under its current
// name.
func (s *Service) RenameGroup(ctx context.Context, groupID, name string) error {
	group, ok := s.library.Group(groupID)
	if !ok {
		return fmt.Errorf("%w: %s", library.ErrGroupNotFound, groupID)
	}
	return s.library.RenameGroup(ctx, groupID, group.Key(), name)
}

func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	return s.library.DeleteGroup(ctx, groupID)
}

// ReviewState reports the card under the cursor. A non-nil group switches
// the review filter and restarts from the first card.
func (s *Service) ReviewState(group *string) map[string]any {
	if group != nil {
		s.reviewMu.Lock()
		if s.reviewGroup != *group {
			s.reviewGroup = *group
			s.review.Restart(s.library.FilteredByGroup(*group))
		}
		s.reviewMu.Unlock()
	}

	s.reviewMu.Lock()
	current := s.reviewGroup
	s.reviewMu.Unlock()

	var card any
	if sentence, ok := s.review.Current(); ok {
		card = sentence
	}
	return map[string]any{
		"group":    current,
		"index":    s.review.Index(),
		"total":    s.review.Len(),
		"sentence": card,
	}
}

func (s *Service) ReviewNext() map[string]any {
	s.review.Next()
	return s.ReviewState(nil)
}

func (s *Service) ReviewMarkDifficult(ctx context.Context) (map[string]any, error) {
	if err := s.review.MarkCurrentDifficult(ctx); err != nil {
		return nil, err
	}
	return s.ReviewState(nil), nil
}

// Export renders the sentences of group, or all sentences, in format.
func (s *Service) Export(ctx context.Context, format export.Format, group, title string) (*export.Result, error) {
	items := s.library.FilteredByGroup(group)
	sentences := make([]export.Sentence, 0, len(items))
	for _, item := range items {
		sentences = append(sentences, export.Sentence{
			Text:      item.Text,
			Group:     item.GroupKey(),
			Difficult: item.IsDifficult,
		})
	}
	return s.exporter.Export(ctx, export.Request{Format: format, Title: title, Group: group}, sentences)
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}
