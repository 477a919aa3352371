package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lendbook/app"
	"lendbook/config"
	"lendbook/controllers"
	"lendbook/service"
	"lendbook/storage/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const userHeader = "X-Test-User"

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	store  *memstore.Store
}

// newAPI mounts the API behind a stand-in for the session middleware that
// trusts userHeader.
func newAPI(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	store := memstore.New()
	srv := &controllers.Srv{
		Store:  store,
		Engine: service.New(store, log),
		Cfg:    &config.Config{WebOrigin: "http://localhost:3000"},
		Log:    log,
	}
	r := gin.New()
	RegisterAPI(r.Group("/api", func(c *gin.Context) {
		uid := c.GetHeader(userHeader)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
			return
		}
		app.SetUser(c, uid, "")
		c.Next()
	}), srv)
	return &apiFixture{t: t, router: r, store: store}
}

func (f *apiFixture) user(name string) string {
	u, err := f.store.FindOrCreateUser(context.Background(), name+"@example.com", name, uuid.NewString())
	require.NoError(f.t, err)
	return u.ID
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (f *apiFixture) do(method, path, as string, body any) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set(userHeader, as)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// must performs a request that is expected to succeed and decodes data into out.
func (f *apiFixture) must(method, path, as string, body, out any) {
	code, env := f.do(method, path, as, body)
	require.Less(f.t, code, 300, "%s %s: %d %s", method, path, code, env.Error)
	if out != nil {
		require.NoError(f.t, json.Unmarshal(env.Data, out))
	}
}

type idOnly struct {
	ID string `json:"id"`
}

func TestLendAndReturnOverHTTP(t *testing.T) {
	f := newAPI(t)
	owner := f.user("Olivia")

	var item, contact idOnly
	f.must(http.MethodPost, "/api/items", owner, map[string]any{"name": "Ladder"}, &item)
	f.must(http.MethodPost, "/api/contacts", owner, map[string]any{"name": "Neighbor"}, &contact)

	var recs []struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		DueDate string `json:"dueDate"`
	}
	f.must(http.MethodPost, "/api/lending", owner, map[string]any{
		"itemIds":   []string{item.ID},
		"contactId": contact.ID,
		"dueDate":   "2999-01-31",
	}, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, "borrowed", recs[0].Status)
	assert.Equal(t, "2999-01-31T00:00:00Z", recs[0].DueDate)

	var detail struct {
		Item struct {
			Availability string `json:"availability"`
		} `json:"item"`
		ActiveBorrow *idOnly `json:"activeBorrow"`
	}
	f.must(http.MethodGet, "/api/items/"+item.ID, owner, nil, &detail)
	assert.Equal(t, "unavailable", detail.Item.Availability)
	require.NotNil(t, detail.ActiveBorrow)
	assert.Equal(t, recs[0].ID, detail.ActiveBorrow.ID)

	code, env := f.do(http.MethodPost, "/api/lending", owner, map[string]any{
		"itemIds": []string{item.ID}, "contactId": contact.ID,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Error, "already lent out")

	f.must(http.MethodPost, "/api/lending/"+recs[0].ID+"/return", owner, nil, nil)
	code, _ = f.do(http.MethodPost, "/api/lending/"+recs[0].ID+"/return", owner, nil)
	assert.Equal(t, http.StatusConflict, code)

	var history []idOnly
	f.must(http.MethodGet, "/api/contacts/"+contact.ID+"/history", owner, nil, &history)
	assert.Len(t, history, 1)
}

func TestBorrowRequestOverHTTP(t *testing.T) {
	f := newAPI(t)
	owner, requester := f.user("Olivia"), f.user("Riley")

	var item, viaOwner idOnly
	f.must(http.MethodPost, "/api/items", owner, map[string]any{"name": "Tent", "visibility": "public"}, &item)
	f.must(http.MethodPost, "/api/contacts", requester, map[string]any{"name": "Olivia"}, &viaOwner)
	f.must(http.MethodPost, "/api/contacts/"+viaOwner.ID+"/link", requester, map[string]any{"userId": owner}, nil)

	var req idOnly
	f.must(http.MethodPost, "/api/requests", requester, map[string]any{
		"contactId": viaOwner.ID, "itemId": item.ID, "message": "for the weekend",
	}, &req)

	var incoming []idOnly
	f.must(http.MethodGet, "/api/requests/incoming", owner, nil, &incoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, req.ID, incoming[0].ID)

	var pending []idOnly
	f.must(http.MethodGet, "/api/requests/pending?itemIds="+item.ID+",other", requester, nil, &pending)
	assert.Len(t, pending, 1)

	code, env := f.do(http.MethodPost, "/api/requests/"+req.ID+"/accept", requester, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not authorized", env.Error)

	var res struct {
		Request struct {
			Status string `json:"status"`
		} `json:"request"`
		Record struct {
			BorrowerUserID string `json:"borrowerUserId"`
		} `json:"record"`
	}
	f.must(http.MethodPost, "/api/requests/"+req.ID+"/accept", owner, nil, &res)
	assert.Equal(t, "accepted", res.Request.Status)
	assert.Equal(t, requester, res.Record.BorrowerUserID)

	code, _ = f.do(http.MethodPost, "/api/requests/"+req.ID+"/reject", owner, map[string]any{"message": "too late"})
	assert.Equal(t, http.StatusConflict, code)

	var borrowed []idOnly
	f.must(http.MethodGet, "/api/lending/borrowed", requester, nil, &borrowed)
	assert.Len(t, borrowed, 1)

	var count struct {
		Count int `json:"count"`
	}
	f.must(http.MethodGet, "/api/notifications/unread-count", requester, nil, &count)
	assert.Equal(t, 1, count.Count)
	f.must(http.MethodPost, "/api/notifications/read-all", requester, nil, nil)
	f.must(http.MethodGet, "/api/notifications/unread-count", requester, nil, &count)
	assert.Equal(t, 0, count.Count)
}

func TestErrorRendering(t *testing.T) {
	f := newAPI(t)
	alice, bob := f.user("Alice"), f.user("Bob")

	var contact idOnly
	f.must(http.MethodPost, "/api/contacts", alice, map[string]any{"name": "Carol"}, &contact)

	code, env := f.do(http.MethodGet, "/api/contacts/"+contact.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not authorized", env.Error)

	code, _ = f.do(http.MethodGet, "/api/contacts/"+uuid.NewString(), alice, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = f.do(http.MethodPost, "/api/contacts", alice, map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Error)

	code, _ = f.do(http.MethodGet, "/api/notifications?limit=lots", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodGet, "/api/users/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(http.MethodGet, "/api/contacts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestEmptyListsRenderAsArrays(t *testing.T) {
	f := newAPI(t)
	alice := f.user("Alice")

	for _, path := range []string{"/api/contacts", "/api/items", "/api/lending/lent", "/api/requests/outgoing", "/api/notifications", "/api/groups", "/api/discover"} {
		code, env := f.do(http.MethodGet, path, alice, nil)
		require.Equal(t, http.StatusOK, code, path)
		assert.JSONEq(t, `[]`, string(env.Data), path)
	}
}

func TestGroupsAndFollowsOverHTTP(t *testing.T) {
	f := newAPI(t)
	alice, bob := f.user("Alice"), f.user("Bob")

	var g struct {
		ID         string `json:"id"`
		InviteCode string `json:"inviteCode"`
	}
	f.must(http.MethodPost, "/api/groups", alice, map[string]any{"name": "Block 12"}, &g)

	var preview struct {
		MemberCount int  `json:"memberCount"`
		IsMember    bool `json:"isMember"`
	}
	f.must(http.MethodGet, "/api/groups/invite/"+g.InviteCode, bob, nil, &preview)
	assert.Equal(t, 1, preview.MemberCount)
	assert.False(t, preview.IsMember)

	f.must(http.MethodPost, "/api/groups/invite/"+g.InviteCode+"/join", bob, nil, nil)
	f.must(http.MethodGet, "/api/groups/"+g.ID, bob, nil, nil)

	f.must(http.MethodPost, "/api/items", alice, map[string]any{"name": "Grill", "groupId": g.ID}, nil)
	var shared []idOnly
	f.must(http.MethodGet, "/api/groups/"+g.ID+"/items", bob, nil, &shared)
	assert.Len(t, shared, 1)

	f.must(http.MethodPost, "/api/users/"+alice+"/follow", bob, nil, nil)
	var following struct {
		Following bool `json:"following"`
	}
	f.must(http.MethodGet, "/api/users/"+alice+"/follow", bob, nil, &following)
	assert.True(t, following.Following)

	code, _ := f.do(http.MethodPost, "/api/users/"+bob+"/follow", bob, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
