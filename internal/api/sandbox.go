package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

// Sandbox is the editable world behind the sandbox routes.
// *sandbox.World satisfies it.
type Sandbox interface {
	AddPlayer(id uuid.UUID, name string, balance, capacity int, items types.Items, perms ...string)
	PlaceSign(loc types.Location, lines ...string)
	PlaceContainer(loc types.Location, capacity int, items types.Items)
	PlaceDevice(loc types.Location, powered bool)
	Break(loc types.Location)
	Balance(ctx context.Context, account uuid.UUID) (int, error)
	Inventory(id uuid.UUID) types.Items
}

type signRequest struct {
	Location types.Location `json:"location"`
	Lines    []string       `json:"lines"`
}

type containerRequest struct {
	Location types.Location `json:"location"`
	Capacity int            `json:"capacity"`
	Items    types.Items    `json:"items"`
}

type deviceRequest struct {
	Location types.Location `json:"location"`
	Powered  bool           `json:"powered"`
}

type playerRequest struct {
	Name        string      `json:"name"`
	Balance     int         `json:"balance"`
	Capacity    int         `json:"capacity"`
	Items       types.Items `json:"items"`
	Permissions []string    `json:"permissions"`
}

type playerResponse struct {
	ID      uuid.UUID   `json:"id"`
	Balance int         `json:"balance"`
	Items   types.Items `json:"items"`
}

func (h *Handler) registerSandbox(mux *http.ServeMux) {
	mux.HandleFunc("PUT /v1/sandbox/signs", h.putSign)
	mux.HandleFunc("PUT /v1/sandbox/containers", h.putContainer)
	mux.HandleFunc("PUT /v1/sandbox/devices", h.putDevice)
	mux.HandleFunc("PUT /v1/sandbox/players/{id}", h.putPlayer)
	mux.HandleFunc("GET /v1/sandbox/players/{id}", h.getPlayer)
	mux.HandleFunc("DELETE /v1/sandbox/blocks/{world}/{x}/{y}/{z}", h.breakBlock)
}

// putSign writes a sign. A host fires build after the player finishes
// editing, so the sign is not turned into a shop here.
func (h *Handler) putSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Lines) > 4 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("a sign has at most 4 lines, got %d", len(req.Lines)))
		return
	}
	h.sandbox.PlaceSign(req.Location, req.Lines...)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putContainer(w http.ResponseWriter, r *http.Request) {
	var req containerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Capacity < 0 {
		writeError(w, http.StatusBadRequest, errors.New("capacity must not be negative"))
		return
	}
	h.sandbox.PlaceContainer(req.Location, req.Capacity, req.Items)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.sandbox.PlaceDevice(req.Location, req.Powered)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid player id: %w", err))
		return
	}
	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Balance < 0 || req.Capacity < 0 {
		writeError(w, http.StatusBadRequest, errors.New("balance and capacity must not be negative"))
		return
	}
	h.sandbox.AddPlayer(id, req.Name, req.Balance, req.Capacity, req.Items, req.Permissions...)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid player id: %w", err))
		return
	}
	balance, err := h.sandbox.Balance(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	items := h.sandbox.Inventory(id)
	if items == nil {
		items = types.Items{}
	}
	writeJSON(w, http.StatusOK, playerResponse{ID: id, Balance: balance, Items: items})
}

// breakBlock removes a block on behalf of the player named by the actor
// query parameter. Breaking part of a shop destroys the shop first and is
// refused when the player may not do so.
func (h *Handler) breakBlock(w http.ResponseWriter, r *http.Request) {
	loc, err := pathLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	actorID, err := uuid.Parse(r.URL.Query().Get("actor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid actor: %w", err))
		return
	}
	actor := types.Actor{ID: actorID, Name: r.URL.Query().Get("name")}

	ctx := r.Context()
	destroyed := false
	if _, ok := h.svc.Lookup(loc); ok {
		if err := h.svc.Destroy(ctx, actor, loc); err != nil {
			writeJSON(w, http.StatusForbidden, InteractResponse{
				Status:   shop.Status(err),
				Reason:   shop.Reason(err),
				Messages: h.drain(actorID),
			})
			return
		}
		destroyed = true
	}
	h.sandbox.Break(loc)
	if destroyed && h.onChange != nil {
		h.onChange(ctx)
	}
	writeJSON(w, http.StatusOK, InteractResponse{OK: true, Status: shop.Status(nil), Messages: h.drain(actorID)})
}

func (h *Handler) drain(id uuid.UUID) []string {
	msgs := h.outbox.Drain(id)
	if msgs == nil {
		return []string{}
	}
	return msgs
}
