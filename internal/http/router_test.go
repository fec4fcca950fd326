package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-anime-catalog/internal/config"
	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/http/handlers"
	"github.com/tbourn/go-anime-catalog/internal/http/middleware"
	"github.com/tbourn/go-anime-catalog/internal/repo"
	"github.com/tbourn/go-anime-catalog/internal/services"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/",
		RateRPS:        100,
		RateBurst:      100,
		BcryptCost:     4,
		IdempotencyTTL: time.Hour,
		CORS:           config.CORSConfig{AllowedOrigins: nil},
		Security:       config.SecurityConfig{EnableHSTS: false},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newServer wires the full router over db and store with the demo users.
func newServer(t *testing.T, db *gorm.DB, store services.AnimeStore, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	_, err := NewAuthService(db, cfg.BcryptCost).Seed(context.Background(), []services.SeedUser{
		{Username: "devdojo", Password: "academy", Authorities: domain.RoleUser},
		{Username: "william", Password: "academy", Authorities: domain.RoleAdmin + "," + domain.RoleUser},
	})
	if err != nil {
		t.Fatalf("seed users: %v", err)
	}
	r := gin.New()
	RegisterRoutes(r, db, store, cfg)
	return r
}

type call struct {
	method, path, body string
	user               string // "" = anonymous; password is always "academy"
	hdr                map[string]string
}

func (c call) do(r http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, "academy")
	}
	for k, v := range c.hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

// stores returns both Record Store implementations over db.
func stores(db *gorm.DB) map[string]services.AnimeStore {
	return map[string]services.AnimeStore{
		"sqlite": repo.NewSQLStore(db),
		"memory": repo.NewMemoryStore(),
	}
}

func TestEndToEnd_KingdomLifecycle(t *testing.T) {
	for name := range stores(nil) {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t)
			r := newServer(t, db, stores(db)[name], testConfig())

			// create
			w := call{method: http.MethodPost, path: "/anime", body: `{"name":"Kingdom"}`, user: "devdojo"}.do(r)
			if w.Code != http.StatusCreated {
				t.Fatalf("create: %d %s", w.Code, w.Body.String())
			}
			created := decode[domain.Anime](t, w)
			if created.ID == 0 || created.Name != "Kingdom" {
				t.Fatalf("created: %+v", created)
			}
			path := fmt.Sprintf("/anime/%d", created.ID)

			// fetch
			w = call{method: http.MethodGet, path: path, user: "devdojo"}.do(r)
			if got := decode[domain.Anime](t, w); w.Code != http.StatusOK || got != created {
				t.Fatalf("get: %d %+v", w.Code, got)
			}

			// find by name
			w = call{method: http.MethodGet, path: "/anime/find?name=King", user: "devdojo"}.do(r)
			if found := decode[[]domain.Anime](t, w); len(found) != 1 || found[0].ID != created.ID {
				t.Fatalf("find: %+v", found)
			}

			// listed on the first page and in /all
			w = call{method: http.MethodGet, path: "/anime", user: "devdojo"}.do(r)
			if page := decode[domain.AnimePage](t, w); page.TotalElements != 1 || page.Content[0].ID != created.ID {
				t.Fatalf("list: %+v", page)
			}
			w = call{method: http.MethodGet, path: "/anime/all", user: "devdojo"}.do(r)
			if all := decode[[]domain.Anime](t, w); len(all) != 1 {
				t.Fatalf("all: %+v", all)
			}

			// replace keeps the id
			body := fmt.Sprintf(`{"id":%d,"name":"Kingdom S2"}`, created.ID)
			w = call{method: http.MethodPut, path: "/anime", body: body, user: "devdojo"}.do(r)
			if w.Code != http.StatusNoContent {
				t.Fatalf("replace: %d %s", w.Code, w.Body.String())
			}
			w = call{method: http.MethodGet, path: path, user: "devdojo"}.do(r)
			if got := decode[domain.Anime](t, w); got.ID != created.ID || got.Name != "Kingdom S2" {
				t.Fatalf("after replace: %+v", got)
			}

			// delete, then the id is gone
			w = call{method: http.MethodDelete, path: path, user: "devdojo"}.do(r)
			if w.Code != http.StatusNoContent {
				t.Fatalf("delete: %d", w.Code)
			}
			w = call{method: http.MethodGet, path: path, user: "devdojo"}.do(r)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("get after delete: %d", w.Code)
			}
			d := decode[middleware.ErrorDetail](t, w)
			if d.Title != handlers.TitleCheckDocs || d.Detail != "anime not found" || d.Status != 400 || d.Timestamp.IsZero() {
				t.Fatalf("not found detail: %+v", d)
			}
			if d.RequestID == "" || d.RequestID != w.Header().Get("X-Request-ID") {
				t.Fatalf("request id not echoed: %+v", d)
			}
		})
	}
}

func TestAdminDelete_RoleEnforced(t *testing.T) {
	db := newTestDB(t)
	r := newServer(t, db, repo.NewSQLStore(db), testConfig())

	w := call{method: http.MethodPost, path: "/anime", body: `{"name":"Berserk"}`, user: "devdojo"}.do(r)
	a := decode[domain.Anime](t, w)
	path := fmt.Sprintf("/anime/admin/%d", a.ID)

	w = call{method: http.MethodDelete, path: path, user: "devdojo"}.do(r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("user admin-delete: %d", w.Code)
	}
	if d := decode[middleware.ErrorDetail](t, w); d.Title != "Forbidden" || d.Status != 403 {
		t.Fatalf("forbidden detail: %+v", d)
	}
	// record still present
	w = call{method: http.MethodGet, path: fmt.Sprintf("/anime/%d", a.ID), user: "devdojo"}.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("record must survive a forbidden delete: %d", w.Code)
	}

	w = call{method: http.MethodDelete, path: path, user: "william"}.do(r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin delete: %d", w.Code)
	}
	w = call{method: http.MethodDelete, path: path, user: "william"}.do(r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("admin delete of absent id: %d", w.Code)
	}
}

func TestAuthentication_Required(t *testing.T) {
	db := newTestDB(t)
	r := newServer(t, db, repo.NewMemoryStore("DBZ"), testConfig())

	for _, c := range []call{
		{method: http.MethodGet, path: "/anime"},
		{method: http.MethodGet, path: "/anime/1"},
		{method: http.MethodPost, path: "/anime", body: `{"name":"x"}`},
		{method: http.MethodGet, path: "/anime", user: "nobody"},
	} {
		w := c.do(r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s as %q: %d", c.method, c.path, c.user, w.Code)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != middleware.BasicRealm {
			t.Fatalf("WWW-Authenticate=%q", got)
		}
	}

	// wrong password for a real user
	req := httptest.NewRequest(http.MethodGet, "/anime", nil)
	req.SetBasicAuth("william", "nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", w.Code)
	}
}

func TestValidationErrorShape(t *testing.T) {
	db := newTestDB(t)
	r := newServer(t, db, repo.NewSQLStore(db), testConfig())

	w := call{method: http.MethodPost, path: "/anime", body: `{}`, user: "devdojo"}.do(r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	for _, k := range []string{"title", "detail", "developerMessage", "status", "timestamp", "fields", "fieldsMessage"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing %q in %s", k, w.Body.String())
		}
	}
	if raw["title"] != handlers.TitleInvalidFields || raw["fields"] != "name, name" {
		t.Fatalf("unexpected body: %v", raw)
	}

	// nothing was stored
	w = call{method: http.MethodGet, path: "/anime/all", user: "devdojo"}.do(r)
	if all := decode[[]domain.Anime](t, w); len(all) != 0 {
		t.Fatalf("invalid create stored a record: %+v", all)
	}
}

func TestIdsAreUniqueAcrossCreates(t *testing.T) {
	for name := range stores(nil) {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t)
			r := newServer(t, db, stores(db)[name], testConfig())

			seen := map[int64]bool{}
			for i := 0; i < 20; i++ {
				w := call{method: http.MethodPost, path: "/anime", body: fmt.Sprintf(`{"name":"a%d"}`, i), user: "devdojo"}.do(r)
				a := decode[domain.Anime](t, w)
				if seen[a.ID] {
					t.Fatalf("duplicate id %d", a.ID)
				}
				seen[a.ID] = true
				if i%3 == 0 {
					call{method: http.MethodDelete, path: fmt.Sprintf("/anime/%d", a.ID), user: "devdojo"}.do(r)
				}
			}
		})
	}
}

func TestIdempotentCreate_ReplaysThroughDB(t *testing.T) {
	db := newTestDB(t)
	r := newServer(t, db, repo.NewSQLStore(db), testConfig())
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "create-kingdom-1"}

	w1 := call{method: http.MethodPost, path: "/anime", body: `{"name":"Kingdom"}`, user: "devdojo", hdr: hdr}.do(r)
	w2 := call{method: http.MethodPost, path: "/anime", body: `{"name":"Kingdom"}`, user: "devdojo", hdr: hdr}.do(r)
	if w1.Code != http.StatusCreated || w2.Code != http.StatusCreated {
		t.Fatalf("codes %d %d", w1.Code, w2.Code)
	}
	if w2.Header().Get(handlers.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("second create not marked as replay")
	}
	if decode[domain.Anime](t, w1).ID != decode[domain.Anime](t, w2).ID {
		t.Fatalf("replay returned a different anime")
	}
	w := call{method: http.MethodGet, path: "/anime/all", user: "devdojo"}.do(r)
	if all := decode[[]domain.Anime](t, w); len(all) != 1 {
		t.Fatalf("replay must not create: %+v", all)
	}

	var n int64
	db.Model(&domain.Idempotency{}).Where("username = ?", "devdojo").Count(&n)
	if n != 1 {
		t.Fatalf("idempotency records = %d", n)
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r := newServer(t, db, repo.NewMemoryStore("DBZ"), cfg)

	if w := (call{method: http.MethodGet, path: "/anime/1", user: "devdojo"}).do(r); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	w := call{method: http.MethodGet, path: "/anime/1", user: "devdojo"}.do(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: %d", w.Code)
	}
	if d := decode[middleware.ErrorDetail](t, w); d.Status != 429 {
		t.Fatalf("429 detail: %+v", d)
	}
	// another user has its own bucket
	if w := (call{method: http.MethodGet, path: "/anime/1", user: "william"}).do(r); w.Code != http.StatusOK {
		t.Fatalf("other user: %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	db := newTestDB(t)
	r := newServer(t, db, repo.NewMemoryStore(), testConfig())

	// /health works without credentials
	w := call{method: http.MethodGet, path: "/health"}.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired and unauthenticated
	w = call{method: http.MethodGet, path: "/metrics"}.do(r)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404 ErrorDetail
	w = call{method: http.MethodGet, path: "/nope"}.do(r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if d := decode[middleware.ErrorDetail](t, w); d.DeveloperMessage != handlers.ErrCodeNotFound {
		t.Fatalf("404 detail: %+v", d)
	}

	// NoMethod → 405 (POST /health)
	w = call{method: http.MethodPost, path: "/health"}.do(r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is off by default
	if w := (call{method: http.MethodGet, path: "/swagger/index.html"}).do(r); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestReady_TracksDatabase(t *testing.T) {
	db := newTestDB(t)
	r := newServer(t, db, repo.NewMemoryStore(), testConfig())

	if w := (call{method: http.MethodGet, path: "/ready"}).do(r); w.Code != http.StatusOK {
		t.Fatalf("GET /ready = %d", w.Code)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	_ = sqlDB.Close()

	w := call{method: http.MethodGet, path: "/ready"}.do(r)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /ready on closed db = %d", w.Code)
	}
	if d := decode[middleware.ErrorDetail](t, w); d.DeveloperMessage != handlers.ErrCodeUnavailable || d.Title != handlers.TitleUnavailable {
		t.Fatalf("ready detail: %+v", d)
	}
}

func TestRegisterRoutes_SwaggerAndBasePath(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	cfg.APIBasePath = "/api/v1"
	cfg.LogRedact = true
	r := newServer(t, db, repo.NewMemoryStore("DBZ"), cfg)

	w := call{method: http.MethodGet, path: "/swagger/doc.json"}.do(r)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"/anime/{id}"`) {
		t.Fatalf("swagger doc: %d", w.Code)
	}
	if w := (call{method: http.MethodGet, path: "/api/v1/anime/1", user: "devdojo"}).do(r); w.Code != http.StatusOK {
		t.Fatalf("prefixed route: %d", w.Code)
	}
	if w := (call{method: http.MethodGet, path: "/anime/1", user: "devdojo"}).do(r); w.Code != http.StatusNotFound {
		t.Fatalf("unprefixed route should 404, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newServer(t, db, repo.NewMemoryStore(), cfg)

	w := call{method: http.MethodGet, path: "/health", hdr: map[string]string{"Origin": "http://example.com"}}.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_idempotencyShim(t *testing.T) {
	db := newTestDB(t)
	s := idempotencyShim{db: db, ttl: time.Hour}
	ctx := context.Background()

	if _, found, err := s.Lookup(ctx, "devdojo", "k"); err != nil || found {
		t.Fatalf("empty lookup: found=%v err=%v", found, err)
	}
	if err := s.Remember(ctx, "devdojo", "k", 7); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	// duplicate is swallowed, first record wins
	if err := s.Remember(ctx, "devdojo", "k", 8); err != nil {
		t.Fatalf("duplicate Remember: %v", err)
	}
	id, found, err := s.Lookup(ctx, "devdojo", "k")
	if err != nil || !found || id != 7 {
		t.Fatalf("lookup: id=%d found=%v err=%v", id, found, err)
	}

	expired := idempotencyShim{db: db, ttl: -time.Minute}
	_ = expired.Remember(ctx, "william", "old", 9)
	if _, found, _ := s.Lookup(ctx, "william", "old"); found {
		t.Fatalf("expired record must not be found")
	}
}

func Test_userRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := userRepoShim{}
	ctx := context.Background()

	u, err := shim.CreateUser(ctx, db, "Academy", "devdojo", "hash", domain.RoleUser)
	if err != nil || u.ID == "" {
		t.Fatalf("CreateUser: %+v %v", u, err)
	}
	got, err := shim.GetUserByUsername(ctx, db, "devdojo")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByUsername: %+v %v", got, err)
	}
	if _, err := shim.CreateUser(ctx, db, "x", "devdojo", "hash", ""); err != repo.ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
