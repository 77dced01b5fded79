package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/arunsworth/cardbox/internal/deck"
	apperrors "github.com/arunsworth/cardbox/internal/errors"
)

const defaultPageSize = 50

type deckRequest struct {
	Name    string        `json:"name" validate:"required"`
	Filters []deck.Params `json:"filters"`
	Sort    string        `json:"sort"`
	Reverse bool          `json:"reverse"`
}

// buildView applies filters and sort to a base view. A guidance response
// means the request supplied nothing actionable; it is returned to the
// client verbatim with a 200, never as an error.
func buildView(v *deck.View, filters []deck.Params, sort string, reverse bool) (*deck.View, *deck.Guidance, error) {
	for _, p := range filters {
		nv, guidance, err := v.Filter(p)
		if err != nil {
			return nil, nil, err
		}
		if guidance != nil {
			return nil, guidance, nil
		}
		v = nv
	}
	if sort != "" {
		nv, guidance := v.Sort(sort, reverse)
		if guidance != nil {
			return nil, guidance, nil
		}
		v = nv
	}
	return v, nil, nil
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	names, err := s.Decks.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"decks": names})
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	v, guidance, err := buildView(s.Decks.Base(), req.Filters, req.Sort, req.Reverse)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if guidance != nil {
		respondJSON(w, r, http.StatusOK, map[string]string{"guidance": guidance.Text})
		return
	}

	if err := v.Materialize(r.Context(), req.Name); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleDropDeck(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Decks.Drop(r.Context(), name); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) handleDeckCards(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}

	from, to, err := pageBounds(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	count, err := v.Count(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	ids, err := v.Slice(r.Context(), from, to)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"deck":  v.Name(),
		"count": count,
		"from":  from,
		"cards": ids,
	})
}

type queryRequest struct {
	Filters []deck.Params `json:"filters"`
	Sort    string        `json:"sort"`
	Reverse bool          `json:"reverse"`
	Limit   int           `json:"limit" validate:"gte=0"`
}

func (s *Server) handleDeckQuery(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	base, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req queryRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if len(req.Filters) == 0 && req.Sort == "" {
		// Querying without predicates is always a caller mistake; surface
		// the filter guidance instead of dumping the whole deck.
		req.Filters = []deck.Params{{}}
	}

	v, guidance, err := buildView(base, req.Filters, req.Sort, req.Reverse)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if guidance != nil {
		respondJSON(w, r, http.StatusOK, map[string]string{"guidance": guidance.Text})
		return
	}

	count, err := v.Count(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	ids, err := v.IDs(r.Context(), req.Limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"deck":  name,
		"count": count,
		"cards": ids,
	})
}

func (s *Server) handleDeckTags(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	tags, err := v.Tags(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"deck": name, "tags": tags})
}

type postponeRequest struct {
	Days int `json:"days" validate:"required"`
}

func (s *Server) handleDeckPostpone(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req postponeRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	affected, err := v.Postpone(r.Context(), req.Days)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"deck": name, "affected": affected})
}

func (s *Server) handleDeckVisibility(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req visibilityRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	affected, err := v.SetVisibility(r.Context(), req.State)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"deck": name, "affected": affected})
}

func (s *Server) handleDeckAddTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req tagRequest
	if err := s.decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	affected, err := v.Tag(r.Context(), req.Tag)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"deck": name, "affected": affected})
}

func (s *Server) handleDeckRemoveTag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, err := s.Decks.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	tag := chi.URLParam(r, "tag")

	affected, err := v.RemoveTag(r.Context(), tag)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"deck": name, "affected": affected})
}

func pageBounds(r *http.Request) (from, to int, err error) {
	from = 1
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = strconv.Atoi(raw)
		if err != nil || from < 1 {
			return 0, 0, apperrors.NewValidationError("from", "must be a positive integer")
		}
	}
	to = from + defaultPageSize - 1
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = strconv.Atoi(raw)
		if err != nil || to < from {
			return 0, 0, apperrors.NewValidationError("to", "must be an integer not preceding from")
		}
	}
	return from, to, nil
}
