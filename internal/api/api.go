// Package api exposes the shop service over HTTP.
//
// A host adapter (a game server plugin, or a script driving the sandbox)
// forwards player interactions to POST /v1/interact and relays the returned
// chat messages back to the player. The handler maps each action onto the
// matching [shop.Service] operation:
//
//   - build:   the player finished writing a sign
//   - trigger: the player used a shop sign
//   - inspect: the player asked what a shop sign does
//   - destroy: the player broke a block; the host cancels the break unless ok
//   - stage:   the player selected a container or lever for their next shop
//   - access:  the player is about to open or switch a block; ok reports
//     whether the host should allow it
//
// Domain refusals are not HTTP errors: they return 200 with ok=false, a
// status label and the reason shown to the player.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/internal/observe"
	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Action names an interaction forwarded by the host.
type Action string

const (
	ActionBuild   Action = "build"
	ActionTrigger Action = "trigger"
	ActionInspect Action = "inspect"
	ActionDestroy Action = "destroy"
	ActionStage   Action = "stage"
	ActionAccess  Action = "access"
)

// mutates reports whether a successful a may change the registry.
func (a Action) mutates() bool {
	return a == ActionBuild || a == ActionTrigger || a == ActionDestroy
}

// Service is the shop service the handler drives. [*shop.Service]
// implements it.
type Service interface {
	Build(ctx context.Context, actor types.Actor, anchor types.Location) (shop.Record, error)
	Trigger(ctx context.Context, actor types.Actor, loc types.Location) error
	Inspect(ctx context.Context, actor types.Actor, loc types.Location) error
	Destroy(ctx context.Context, actor types.Actor, loc types.Location) error
	Stage(ctx context.Context, actor types.Actor, loc types.Location) error
	CanAccess(ctx context.Context, actor types.Actor, loc types.Location) bool
	Lookup(loc types.Location) (shop.Record, bool)
	Records() []shop.Record
}

var _ Service = (*shop.Service)(nil)

// Outbox hands out the chat messages queued for a player since the last call.
type Outbox interface {
	Drain(id uuid.UUID) []string
}

// InteractRequest is the body of POST /v1/interact.
type InteractRequest struct {
	Action   Action         `json:"action"`
	Actor    types.Actor    `json:"actor"`
	Location types.Location `json:"location"`
}

// InteractResponse is returned for every processed interaction.
type InteractResponse struct {
	OK       bool         `json:"ok"`
	Status   string       `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Messages []string     `json:"messages"`
	Shop     *shop.Record `json:"shop,omitempty"`
}

// errorResponse is the body of 4xx and 5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the interaction API. Create one with [New].
type Handler struct {
	svc      Service
	outbox   Outbox
	sandbox  Sandbox
	onChange func(context.Context)
	logger   *slog.Logger
}

// Option configures a [Handler].
type Option func(*Handler)

// WithOnChange registers fn to be called after every interaction that may
// have changed the registry. fn runs outside the service lock.
func WithOnChange(fn func(context.Context)) Option {
	return func(h *Handler) { h.onChange = fn }
}

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSandbox enables the world-editing routes backed by sb.
func WithSandbox(sb Sandbox) Option {
	return func(h *Handler) { h.sandbox = sb }
}

// New returns a [Handler] driving svc. outbox supplies the messages returned
// with each response.
func New(svc Service, outbox Outbox, opts ...Option) *Handler {
	h := &Handler{svc: svc, outbox: outbox, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/interact", h.Interact)
	mux.HandleFunc("GET /v1/shops", h.ListShops)
	mux.HandleFunc("GET /v1/shops/{world}/{x}/{y}/{z}", h.GetShop)
	if h.sandbox != nil {
		h.registerSandbox(mux)
	}
}

// Interact processes one player interaction.
func (h *Handler) Interact(w http.ResponseWriter, r *http.Request) {
	var req InteractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Actor.ID == uuid.Nil {
		writeError(w, http.StatusBadRequest, errors.New("actor.id is required"))
		return
	}

	ctx := r.Context()
	log := observe.LoggerFrom(ctx, h.logger).With("action", req.Action, "actor", req.Actor, "location", req.Location)

	resp, err := h.dispatch(ctx, req)
	// Messages queued before a failure must not leak into the next response.
	msgs := h.drain(req.Actor.ID)
	if err != nil {
		if errors.Is(err, errUnknownAction) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if errors.Is(err, shop.ErrRegistryCorrupt) {
			log.Error("interaction hit a corrupt registry", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		log.Error("interaction failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp.Messages = msgs
	log.Debug("interaction processed", "status", resp.Status)

	if resp.OK && req.Action.mutates() && h.onChange != nil {
		h.onChange(ctx)
	}
	writeJSON(w, http.StatusOK, resp)
}

var errUnknownAction = errors.New("unknown action")

// dispatch runs req against the service. Domain failures are folded into
// the response; only unexpected errors are returned.
func (h *Handler) dispatch(ctx context.Context, req InteractRequest) (InteractResponse, error) {
	var err error
	var rec *shop.Record

	switch req.Action {
	case ActionBuild:
		var r shop.Record
		if r, err = h.svc.Build(ctx, req.Actor, req.Location); err == nil {
			rec = &r
		}
	case ActionTrigger:
		err = h.svc.Trigger(ctx, req.Actor, req.Location)
	case ActionInspect:
		err = h.svc.Inspect(ctx, req.Actor, req.Location)
	case ActionDestroy:
		err = h.svc.Destroy(ctx, req.Actor, req.Location)
	case ActionStage:
		err = h.svc.Stage(ctx, req.Actor, req.Location)
	case ActionAccess:
		if !h.svc.CanAccess(ctx, req.Actor, req.Location) {
			err = &shop.Error{Err: shop.ErrPermissionDenied, Reason: "This is protected by a shop."}
		}
	default:
		return InteractResponse{}, fmt.Errorf("%w %q", errUnknownAction, req.Action)
	}

	if errors.Is(err, shop.ErrRegistryCorrupt) {
		return InteractResponse{}, err
	}
	resp := InteractResponse{OK: err == nil, Status: shop.Status(err), Reason: shop.Reason(err), Shop: rec}
	if resp.OK && rec == nil && req.Action != ActionStage && req.Action != ActionAccess {
		if r, ok := h.svc.Lookup(req.Location); ok {
			resp.Shop = &r
		}
	}
	return resp, nil
}

// ListShops returns every registered shop, ordered by anchor.
func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	records := h.svc.Records()
	world := r.URL.Query().Get("world")
	out := make([]shop.Record, 0, len(records))
	for _, rec := range records {
		if world == "" || rec.Anchor.World == world {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetShop returns the shop occupying the location in the path.
func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	loc, err := pathLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, ok := h.svc.Lookup(loc)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no shop at %s", loc))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// pathLocation parses the {world}/{x}/{y}/{z} path wildcards.
func pathLocation(r *http.Request) (types.Location, error) {
	loc := types.Location{World: r.PathValue("world")}
	for _, c := range []struct {
		name string
		dst  *int
	}{{"x", &loc.X}, {"y", &loc.Y}, {"z", &loc.Z}} {
		n, err := strconv.Atoi(r.PathValue(c.name))
		if err != nil {
			return types.Location{}, fmt.Errorf("invalid coordinate %s=%q", c.name, r.PathValue(c.name))
		}
		*c.dst = n
	}
	return loc, nil
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
