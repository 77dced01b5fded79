package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arunsworth/cardbox/internal/card"
	"github.com/arunsworth/cardbox/internal/daycount"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
	"github.com/arunsworth/cardbox/internal/models"
)

const maxMediaBytes = 16 << 20

type cardRequest struct {
	Fields  map[string]any `json:"fields"`
	Date    string         `json:"date"`
	Seconds int            `json:"seconds" validate:"gte=0"`
}

// editOptions turns the optional request date and seconds into projection
// options. Dates are ISO or a signed day offset from today.
func editOptions(req cardRequest) ([]card.UpdateOption, error) {
	var opts []card.UpdateOption
	if req.Date != "" {
		d, err := daycount.Parse(req.Date, daycount.Today())
		if err != nil {
			return nil, apperrors.NewValidationError("date", err.Error())
		}
		opts = append(opts, card.At(d))
	}
	if req.Seconds > 0 {
		opts = append(opts, card.TookSeconds(req.Seconds))
	}
	return opts, nil
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
	}
	opts, err := editOptions(req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	id, err := s.Cards.Create(r.Context(), opts...)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.Fields) > 0 {
		if err := s.Cards.Update(r.Context(), id, req.Fields, opts...); err != nil {
			handleError(w, r, err)
			return
		}
	}
	respondJSON(w, r, http.StatusCreated, map[string]int64{"id": id})
}

type cardResponse struct {
	ID             int64          `json:"id"`
	FrontText      string         `json:"front_text"`
	BackText       string         `json:"back_text"`
	CardType       string         `json:"card_type"`
	Visibility     string         `json:"visibility"`
	CreateDate     daycount.Date  `json:"create_date"`
	DueDate        daycount.Date  `json:"due_date"`
	LastEditDate   daycount.Date  `json:"last_edit_date"`
	LastReviewDate *daycount.Date `json:"last_review_date"`
	Due            bool           `json:"due"`
	Tags           []string       `json:"tags"`
	FrontImageID   int64          `json:"front_image_id,omitempty"`
	BackImageID    int64          `json:"back_image_id,omitempty"`
	FrontAudioID   int64          `json:"front_audio_id,omitempty"`
	BackAudioID    int64          `json:"back_audio_id,omitempty"`
	EditSeconds    int64          `json:"edit_seconds"`
	ReviewSeconds  int64          `json:"review_seconds"`
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	ctx := r.Context()

	resp := cardResponse{ID: id}
	texts := map[string]*string{
		"front_text": &resp.FrontText,
		"back_text":  &resp.BackText,
		"card_type":  &resp.CardType,
		"visibility": &resp.Visibility,
	}
	for attr, dst := range texts {
		if *dst, err = s.Cards.Text(ctx, id, attr); err != nil {
			handleError(w, r, err)
			return
		}
	}
	dates := map[string]*daycount.Date{
		"create_date":    &resp.CreateDate,
		"due_date":       &resp.DueDate,
		"last_edit_date": &resp.LastEditDate,
	}
	for attr, dst := range dates {
		if *dst, err = s.Cards.Date(ctx, id, attr); err != nil {
			handleError(w, r, err)
			return
		}
	}
	if lastReview, err := s.Cards.Date(ctx, id, "last_review_date"); err != nil {
		handleError(w, r, err)
		return
	} else if !lastReview.IsZero() {
		resp.LastReviewDate = &lastReview
	}
	ints := map[string]*int64{
		"front_image_id": &resp.FrontImageID,
		"back_image_id":  &resp.BackImageID,
		"front_audio_id": &resp.FrontAudioID,
		"back_audio_id":  &resp.BackAudioID,
		"edit_seconds":   &resp.EditSeconds,
		"review_seconds": &resp.ReviewSeconds,
	}
	for attr, dst := range ints {
		if *dst, err = s.Cards.Int(ctx, id, attr); err != nil {
			handleError(w, r, err)
			return
		}
	}
	if resp.Due, err = s.Cards.IsDue(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}
	if resp.Tags, err = s.Cards.Tags(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req cardRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.Fields) == 0 {
		handleError(w, r, apperrors.NewValidationError("fields", "must not be empty"))
		return
	}
	opts, err := editOptions(req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := s.Cards.Update(r.Context(), id, req.Fields, opts...); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]int64{"id": id})
}

type visibilityRequest struct {
	State string `json:"state" validate:"required,oneof=visible deleted purged"`
}

func (s *Server) handleCardVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req visibilityRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	changed, err := s.Cards.SetVisibility(r.Context(), id, req.State)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"id": id, "changed": changed})
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	attr := chi.URLParam(r, "attr")

	content, err := s.Cards.MediaContent(r.Context(), id, attr)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if content == nil {
		handleError(w, r, apperrors.NewNotFoundError("media", attr))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(content))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (s *Server) handlePutMedia(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	attr := chi.URLParam(r, "attr")
	if !models.IsVirtualMedia(attr) {
		handleError(w, r, apperrors.NewValidationError(attr, "not a media attribute"))
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxMediaBytes))
	if err != nil {
		handleError(w, r, apperrors.NewValidationError(attr, "failed to read media body"))
		return
	}
	if len(content) == 0 {
		handleError(w, r, apperrors.NewValidationError(attr, "media body must not be empty"))
		return
	}

	if err := s.Cards.Update(r.Context(), id, map[string]any{attr: content}); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]int64{"id": id})
}

type reviewRequest struct {
	Grade   *int   `json:"grade" validate:"required"`
	Seconds int    `json:"seconds" validate:"gte=0"`
	Date    string `json:"date"`
}

func (s *Server) handleLogReview(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req reviewRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	var opts []card.UpdateOption
	if req.Date != "" {
		d, err := daycount.Parse(req.Date, daycount.Today())
		if err != nil {
			handleError(w, r, apperrors.NewValidationError("date", err.Error()))
			return
		}
		opts = append(opts, card.At(d))
	}

	due, err := s.Cards.LogReview(r.Context(), id, *req.Grade, req.Seconds, opts...)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"id": id, "due_date": due})
}

type reviewResponse struct {
	Date    daycount.Date `json:"date"`
	Grade   int           `json:"grade"`
	Seconds int           `json:"seconds"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h, err := s.Cards.History(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	reviews := make([]reviewResponse, len(h.Reviews))
	for i, rv := range h.Reviews {
		reviews[i] = reviewResponse{Date: rv.Date, Grade: rv.Grade, Seconds: rv.Seconds}
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"card_id":     h.CardID,
		"create_date": h.CreateDate,
		"reviews":     reviews,
	})
}

func (s *Server) handleDueDates(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	dates, err := s.Cards.HypoDueDates(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, dates)
}

type tagRequest struct {
	Tag string `json:"tag" validate:"required"`
}

func (s *Server) handleCardTags(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	tags, err := s.Cards.Tags(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"id": id, "tags": tags})
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req tagRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	changed, err := s.Cards.AddTag(r.Context(), id, req.Tag)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"id": id, "changed": changed})
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	tag := chi.URLParam(r, "tag")

	changed, err := s.Cards.RemoveTag(r.Context(), id, tag)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"id": id, "changed": changed})
}
