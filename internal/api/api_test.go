package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/internal/api"
	"github.com/MrWong99/signshop/internal/sandbox"
	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

var (
	owner = types.Actor{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"), Name: "owner"}
	buyer = types.Actor{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002"), Name: "buyer"}

	sign  = types.Location{World: "w", X: 0}
	chest = types.Location{World: "w", X: 1}
)

type testServer struct {
	world   *sandbox.World
	svc     *shop.Service
	mux     *http.ServeMux
	changes atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := sandbox.New(sandbox.WithLogger(discard))
	w.AddPlayer(owner.ID, owner.Name, 0, 0, nil, "signshop.create.*")
	w.AddPlayer(buyer.ID, buyer.Name, 15, 0, nil)

	svc := shop.NewService(&shop.Env{
		Signs: w, Permissions: w, Economy: w, Inventories: w, World: w, Messenger: w,
		CurrencyName: "coins",
		Logger:       discard,
	})
	ts := &testServer{world: w, svc: svc, mux: http.NewServeMux()}
	h := api.New(svc, w,
		api.WithLogger(discard),
		api.WithSandbox(w),
		api.WithOnChange(func(context.Context) { ts.changes.Add(1) }),
	)
	h.Register(ts.mux)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) interact(t *testing.T, action api.Action, actor types.Actor, loc types.Location) api.InteractResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/interact", api.InteractRequest{Action: action, Actor: actor, Location: loc})
	if rec.Code != http.StatusOK {
		t.Fatalf("%s: status %d, body %s", action, rec.Code, rec.Body)
	}
	var resp api.InteractResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// buildBuyShop builds owner's shop selling one "bread" for 10 through the API.
func (ts *testServer) buildBuyShop(t *testing.T) {
	t.Helper()
	ts.world.PlaceContainer(chest, 0, types.Items{"bread": 3})
	ts.world.PlaceSign(sign, "[buy]", "", "", "10")
	if resp := ts.interact(t, api.ActionStage, owner, chest); !resp.OK {
		t.Fatalf("stage: %+v", resp)
	}
	resp := ts.interact(t, api.ActionBuild, owner, sign)
	if !resp.OK {
		t.Fatalf("build: %+v", resp)
	}
	if resp.Shop == nil || resp.Shop.Kind != shop.KindBuy {
		t.Fatalf("build returned shop %+v", resp.Shop)
	}
}

func TestInteract_BuildAndTrigger(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.buildBuyShop(t)

	resp := ts.interact(t, api.ActionTrigger, buyer, sign)
	if !resp.OK || resp.Status != "ok" {
		t.Fatalf("trigger: %+v", resp)
	}
	if len(resp.Messages) == 0 {
		t.Error("trigger returned no messages")
	}
	if got := ts.world.Inventory(buyer.ID)["bread"]; got != 1 {
		t.Errorf("buyer bread = %d, want 1", got)
	}
	if got := ts.changes.Load(); got != 2 {
		t.Errorf("onChange calls = %d, want 2 (build and trigger)", got)
	}

	// Messages are drained: a second read returns only new ones.
	resp = ts.interact(t, api.ActionInspect, buyer, sign)
	if !resp.OK || resp.Shop == nil {
		t.Fatalf("inspect: %+v", resp)
	}
	if ts.changes.Load() != 2 {
		t.Error("inspect triggered onChange")
	}
}

func TestInteract_DomainFailureIsOKFalse(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.buildBuyShop(t)

	ts.interact(t, api.ActionTrigger, buyer, sign)
	resp := ts.interact(t, api.ActionTrigger, buyer, sign)
	if resp.OK {
		t.Fatal("second purchase with 5 coins succeeded")
	}
	if resp.Status != "insufficient" {
		t.Errorf("status = %q, want insufficient", resp.Status)
	}
	if !strings.Contains(resp.Reason, "enough coins") {
		t.Errorf("reason = %q", resp.Reason)
	}
}

func TestInteract_Statuses(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.buildBuyShop(t)
	ts.world.PlaceSign(types.Location{World: "w", X: 5}, "hello")

	tests := []struct {
		name   string
		action api.Action
		actor  types.Actor
		loc    types.Location
		ok     bool
		status string
	}{
		{"ordinary sign", api.ActionBuild, owner, types.Location{World: "w", X: 5}, false, "not_a_shop"},
		{"trigger nothing", api.ActionTrigger, buyer, types.Location{World: "w", X: 9}, false, "no_shop"},
		{"buyer destroys", api.ActionDestroy, buyer, sign, false, "permission_denied"},
		{"buyer opens stock", api.ActionAccess, buyer, chest, false, "permission_denied"},
		{"owner opens stock", api.ActionAccess, owner, chest, true, "ok"},
		{"buyer uses anchor", api.ActionAccess, buyer, sign, true, "ok"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.interact(t, tc.action, tc.actor, tc.loc)
			if resp.OK != tc.ok || resp.Status != tc.status {
				t.Errorf("got ok=%v status=%q, want ok=%v status=%q", resp.OK, resp.Status, tc.ok, tc.status)
			}
		})
	}
}

func TestInteract_Destroy(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.buildBuyShop(t)

	resp := ts.interact(t, api.ActionDestroy, owner, chest)
	if !resp.OK || resp.Shop != nil {
		t.Fatalf("destroy: %+v", resp)
	}
	if _, ok := ts.svc.Lookup(sign); ok {
		t.Error("shop still registered after destroy")
	}
}

// corruptOnce fails its next Trigger with a corrupt registry after queueing
// a message for the actor.
type corruptOnce struct {
	*shop.Service
	world *sandbox.World
	armed atomic.Bool
}

func (c *corruptOnce) Trigger(ctx context.Context, actor types.Actor, loc types.Location) error {
	if c.armed.CompareAndSwap(true, false) {
		c.world.Notify(actor, "half-finished exchange")
		return fmt.Errorf("trigger at %s: %w", loc, shop.ErrRegistryCorrupt)
	}
	return c.Service.Trigger(ctx, actor, loc)
}

func TestInteract_ServerErrorDrainsMessages(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.buildBuyShop(t)

	svc := &corruptOnce{Service: ts.svc, world: ts.world}
	svc.armed.Store(true)
	mux := http.NewServeMux()
	api.New(svc, ts.world, api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).Register(mux)
	ts.mux = mux

	rec := ts.do(t, http.MethodPost, "/v1/interact", api.InteractRequest{Action: api.ActionTrigger, Actor: buyer, Location: sign})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	resp := ts.interact(t, api.ActionTrigger, buyer, sign)
	if !resp.OK {
		t.Fatalf("trigger after failure: %+v", resp)
	}
	for _, m := range resp.Messages {
		if strings.Contains(m, "half-finished") {
			t.Errorf("message from the failed interaction leaked: %q", resp.Messages)
		}
	}
	if len(resp.Messages) == 0 {
		t.Error("trigger returned no messages")
	}
}

func TestInteract_BadRequests(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"action":`},
		{"unknown field", `{"action":"build","actor":{"id":"` + owner.ID.String() + `"},"extra":1}`},
		{"missing actor", `{"action":"build","location":{"world":"w"}}`},
		{"unknown action", `{"action":"explode","actor":{"id":"` + owner.ID.String() + `"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/interact", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			ts.mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestListAndGetShops(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.buildBuyShop(t)

	rec := ts.do(t, http.MethodGet, "/v1/shops", nil)
	var list []shop.Record
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].Anchor != sign {
		t.Fatalf("list = %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/v1/shops?world=nether", nil)
	list = nil
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list) != 0 {
		t.Errorf("filtered list = %+v, want empty", list)
	}

	rec = ts.do(t, http.MethodGet, "/v1/shops/w/1/0/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get by stock location: status %d", rec.Code)
	}
	var got shop.Record
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got.Kind != shop.KindBuy || got.Items["bread"] != 3 {
		t.Errorf("get = %+v", got)
	}

	if rec := ts.do(t, http.MethodGet, "/v1/shops/w/7/0/0", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing shop: status %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/shops/w/x/0/0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad coordinate: status %d, want 400", rec.Code)
	}
}
