package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/service"
)

var errInvalidGameID = errors.New("invalid game id")

// ImportCollection handles POST /collection/{username}. It runs the full
// pipeline and returns the run report. A collection still being prepared
// upstream answers 202 with retry set.
func (h *Handler) ImportCollection(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "username")

	// The run survives a client disconnect but stops with the process.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stop := context.AfterFunc(h.runCtx, cancel)
	defer stop()

	report, err := h.importer.Run(ctx, userName)
	if err != nil {
		writeError(w, r, err, report)
		return
	}

	if report.Status == model.RunPending {
		writeJSON(w, http.StatusAccepted, PendingResponse{
			Message: report.Message,
			Retry:   true,
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// GetCollection handles GET /collection/{username}?sort=&order=.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	opts, err := service.ParseSort(r.URL.Query().Get("sort"), r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	view, err := h.reader.GetCollection(r.Context(), chi.URLParam(r, "username"), opts)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetUserMechanics handles GET /users/{username}/mechanics.
func (h *Handler) GetUserMechanics(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "username")

	stats, err := h.reader.GetUserMechanics(r.Context(), userName)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		UserName  string                   `json:"username"`
		Mechanics []model.UserMechanicStat `json:"mechanics"`
	}{userName, stats})
}

// GetGame handles GET /games/{bggId}.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bggId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, errInvalidGameID, nil)
		return
	}

	game, err := h.reader.GetGame(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, game)
}
