// Package api exposes the card store over HTTP as a JSON API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arunsworth/cardbox/internal/card"
	"github.com/arunsworth/cardbox/internal/deck"
)

type Server struct {
	Cards *card.Projection
	Decks *deck.Engine

	validate *validator.Validate
}

func NewServer(cards *card.Projection, decks *deck.Engine) *Server {
	return &Server{
		Cards:    cards,
		Decks:    decks,
		validate: validator.New(),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", s.handleHealth)

	r.Post("/cards", s.handleCreateCard)
	r.Get("/cards/{id}", s.handleGetCard)
	r.Patch("/cards/{id}", s.handleUpdateCard)
	r.Post("/cards/{id}/visibility", s.handleCardVisibility)

	r.Get("/cards/{id}/media/{attr}", s.handleGetMedia)
	r.Put("/cards/{id}/media/{attr}", s.handlePutMedia)

	r.Post("/cards/{id}/reviews", s.handleLogReview)
	r.Get("/cards/{id}/history", s.handleHistory)
	r.Get("/cards/{id}/due-dates", s.handleDueDates)

	r.Get("/cards/{id}/tags", s.handleCardTags)
	r.Post("/cards/{id}/tags", s.handleAddTag)
	r.Delete("/cards/{id}/tags/{tag}", s.handleRemoveTag)

	r.Get("/decks", s.handleListDecks)
	r.Post("/decks", s.handleCreateDeck)
	r.Delete("/decks/{name}", s.handleDropDeck)

	r.Get("/decks/{name}/cards", s.handleDeckCards)
	r.Post("/decks/{name}/query", s.handleDeckQuery)
	r.Get("/decks/{name}/tags", s.handleDeckTags)

	r.Post("/decks/{name}/postpone", s.handleDeckPostpone)
	r.Post("/decks/{name}/visibility", s.handleDeckVisibility)
	r.Post("/decks/{name}/tags", s.handleDeckAddTag)
	r.Delete("/decks/{name}/tags/{tag}", s.handleDeckRemoveTag)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
