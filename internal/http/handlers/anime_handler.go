// Anime HTTP handlers.
//
// This file exposes REST endpoints for the catalog:
//   - GET    /anime              (list, paginated, ETag support)
//   - GET    /anime/all          (list, unpaged)
//   - GET    /anime/{id}         (fetch)
//   - GET    /anime/find?name=   (filter by name)
//   - POST   /anime              (create, Idempotency-Key support)
//   - PUT    /anime              (replace)
//   - DELETE /anime/{id}         (delete)
//   - DELETE /anime/admin/{id}   (delete, ADMIN only; the role check is
//     installed by the router)
//
// Handlers are transport-thin: they parse and validate input, call the
// service, and hand every error to writeError.
package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/http/middleware"
	"github.com/tbourn/go-anime-catalog/internal/utils"
	"github.com/tbourn/go-anime-catalog/internal/validation"
)

// HeaderIdempotencyReplayed marks a POST response served from a previous
// request with the same Idempotency-Key.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

//
// Service contracts (context-aware)
//

// AnimeService defines the catalog operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AnimeService interface {
	ListAll(ctx context.Context, req domain.PageRequest) (domain.AnimePage, error)
	ListAllNonPageable(ctx context.Context) ([]domain.Anime, error)
	// FindByIDOrFail returns services.ErrAnimeNotFound when id is absent.
	FindByIDOrFail(ctx context.Context, id int64) (*domain.Anime, error)
	FindByName(ctx context.Context, name string) ([]domain.Anime, error)
	Save(ctx context.Context, body validation.AnimePostRequestBody) (*domain.Anime, error)
	Replace(ctx context.Context, body validation.AnimePutRequestBody) error
	Delete(ctx context.Context, id int64) error
	// Stats and Revision feed the list ETag.
	Stats(ctx context.Context) (count, maxID int64, err error)
	Revision() int64
}

// IdempotencyStore remembers which anime a (user, Idempotency-Key) pair
// created so retried POSTs can be replayed instead of duplicated.
type IdempotencyStore interface {
	// Lookup reports the anime id stored for (username, key), if any.
	Lookup(ctx context.Context, username, key string) (animeID int64, found bool, err error)
	// Remember stores animeID for (username, key).
	Remember(ctx context.Context, username, key string, animeID int64) error
}

//
// Handler wiring
//

// Handlers groups the catalog endpoints.
type Handlers struct {
	svc  AnimeService
	idem IdempotencyStore
}

// New constructs and returns a Handlers instance. idem may be nil, in which
// case Idempotency-Key headers are validated but not honored.
func New(svc AnimeService, idem IdempotencyStore) *Handlers {
	return &Handlers{svc: svc, idem: idem}
}

// username extracts the authenticated login set by middleware.BasicAuth.
func username(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

//
// Helpers
//

// parsePageRequest reads page (zero-based), size and sort=field[,asc|desc].
// Absent values take defaults. A size outside 1..maxPageSize, or a page whose
// offset does not fit in an int, is an error.
func parsePageRequest(c *gin.Context) (domain.PageRequest, error) {
	req := domain.PageRequest{SortField: domain.SortByID}

	size, err := utils.IntParam(c.Query("size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return req, fmt.Errorf("size: %w", err)
	}
	page, err := utils.IntParam(c.Query("page"), 0, 0, math.MaxInt/size)
	if err != nil {
		return req, fmt.Errorf("page: %w", err)
	}
	req.Page, req.Size = page, size

	field, desc, err := utils.ParseSort(c.Query("sort"))
	if err != nil {
		return req, fmt.Errorf("sort: %w", err)
	}
	switch field {
	case "":
	case domain.SortByID, domain.SortByName:
		req.SortField, req.SortDesc = field, desc
	default:
		return req, fmt.Errorf("sort: cannot sort by %q", field)
	}
	return req, nil
}

// pathID parses the :id route parameter, writing a 400 on failure.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, TitleBadRequest, ErrCodeInvalidID, "id must be an integer")
		return 0, false
	}
	return id, true
}

// listETag is a weak validator over the catalog state and the requested page.
func listETag(count, maxID, rev int64, req domain.PageRequest) string {
	dir := "asc"
	if req.SortDesc {
		dir = "desc"
	}
	return fmt.Sprintf(`W/"anime:%d:%d:%d:%d:%d:%s:%s"`, count, maxID, rev, req.Page, req.Size, req.SortField, dir)
}

//
// Handlers
//

// List godoc
// @ID          listAnime
// @Summary     List anime (paginated)
// @Description Returns one page of the catalog. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Anime
// @Produce     json
// @Security    BasicAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"anime:2:2:0:0:20:id:asc\")
// @Param       page           query   int     false "Zero-based page number"       minimum(0) default(0)
// @Param       size           query   int     false "Items per page"               minimum(1) maximum(100) default(20)
// @Param       sort           query   string  false "Sort as field,direction"      example(name,desc)
//
// @Success     200  {object} domain.AnimePage
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} middleware.ErrorDetail "Bad paging parameters"
// @Failure     401  {object} middleware.ErrorDetail "Unauthorized"
// @Failure     500  {object} middleware.ErrorDetail "Internal error"
// @Router      /anime [get]
func (h *Handlers) List(c *gin.Context) {
	ctx := c.Request.Context()
	req, err := parsePageRequest(c)
	if err != nil {
		fail(c, http.StatusBadRequest, TitleBadRequest, ErrCodeInvalidPaging, err.Error())
		return
	}

	// ETag pre-check (best effort).
	if count, maxID, err := h.svc.Stats(ctx); err == nil {
		etag := listETag(count, maxID, h.svc.Revision(), req)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, err := h.svc.ListAll(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListAll godoc
// @ID          listAllAnime
// @Summary     List the whole catalog
// @Description Returns every anime in insertion order, without pagination.
// @Tags        Anime
// @Produce     json
// @Security    BasicAuth
// @Success     200  {array}  domain.Anime
// @Failure     401  {object} middleware.ErrorDetail "Unauthorized"
// @Failure     500  {object} middleware.ErrorDetail "Internal error"
// @Router      /anime/all [get]
func (h *Handlers) ListAll(c *gin.Context) {
	items, err := h.svc.ListAllNonPageable(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// FindByID godoc
// @ID          findAnimeById
// @Summary     Fetch one anime
// @Tags        Anime
// @Produce     json
// @Security    BasicAuth
// @Param       id   path     int  true  "Anime id"
// @Success     200  {object} domain.Anime
// @Failure     400  {object} middleware.ErrorDetail "Unknown or malformed id"
// @Failure     401  {object} middleware.ErrorDetail "Unauthorized"
// @Failure     500  {object} middleware.ErrorDetail "Internal error"
// @Router      /anime/{id} [get]
func (h *Handlers) FindByID(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	lg := middleware.LoggerFrom(c)
	lg.Debug().Str("username", username(c)).Int64("anime_id", id).Msg("find anime by id")

	a, err := h.svc.FindByIDOrFail(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// FindByName godoc
// @ID          findAnimeByName
// @Summary     Filter anime by name
// @Description Returns every anime whose name contains the given text (case-sensitive). No match yields an empty array.
// @Tags        Anime
// @Produce     json
// @Security    BasicAuth
// @Param       name  query    string  true  "Name fragment"  example(DBZ)
// @Success     200   {array}  domain.Anime
// @Failure     401   {object} middleware.ErrorDetail "Unauthorized"
// @Failure     500   {object} middleware.ErrorDetail "Internal error"
// @Router      /anime/find [get]
func (h *Handlers) FindByName(c *gin.Context) {
	items, err := h.svc.FindByName(c.Request.Context(), c.Query("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// Save godoc
// @ID          createAnime
// @Summary     Create an anime
// @Description Creates an anime and returns it with its assigned id. With an Idempotency-Key, a retry by the same user returns the originally created anime and sets Idempotency-Replayed: true.
// @Tags        Anime
// @Accept      json
// @Produce     json
// @Security    BasicAuth
//
// @Param       Idempotency-Key  header  string                          false  "Idempotency key"  example(3f1c3b2a-1d4e-4b6c-9a8e-5f2d7c1b0a9e)
// @Param       body             body    validation.AnimePostRequestBody  true   "Create payload"
//
// @Success     201  {object} domain.Anime
// @Header      201  {string} Idempotency-Replayed "true when served from a previous request"
// @Failure     400  {object} middleware.ErrorDetail "Invalid JSON or fields"
// @Failure     401  {object} middleware.ErrorDetail "Unauthorized"
// @Failure     429  {object} middleware.ErrorDetail "Rate limit exceeded"
// @Failure     500  {object} middleware.ErrorDetail "Internal error"
// @Router      /anime [post]
func (h *Handlers) Save(c *gin.Context) {
	ctx := c.Request.Context()
	var body validation.AnimePostRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, TitleInvalidJSON, ErrCodeInvalidJSON, "invalid JSON body")
		return
	}
	if err := validation.ValidatePost(body).Err(); err != nil {
		writeError(c, err)
		return
	}

	user := username(c)
	key, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.idem != nil {
		if a, replayed := h.replay(c, user, key); replayed {
			c.Header(HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusCreated, a)
			return
		}
	}

	a, err := h.svc.Save(ctx, body)
	if err != nil {
		writeError(c, err)
		return
	}

	// Store idempotency record (best effort).
	if hasKey && h.idem != nil {
		if err := h.idem.Remember(ctx, user, key, a.ID); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("code", ErrCodeIdempotencyStore).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, a)
}

// replay returns the anime previously created for (user, key). Lookup
// failures and anime deleted since then fall through to a fresh create.
func (h *Handlers) replay(c *gin.Context, user, key string) (*domain.Anime, bool) {
	ctx := c.Request.Context()
	id, found, err := h.idem.Lookup(ctx, user, key)
	if err != nil || !found {
		return nil, false
	}
	a, err := h.svc.FindByIDOrFail(ctx, id)
	if err != nil {
		return nil, false
	}
	return a, true
}

// Replace godoc
// @ID          replaceAnime
// @Summary     Replace an anime
// @Description Overwrites the name of an existing anime, keeping its id.
// @Tags        Anime
// @Accept      json
// @Security    BasicAuth
// @Param       body  body  validation.AnimePutRequestBody  true  "Replace payload"
// @Success     204   "No Content"
// @Failure     400   {object} middleware.ErrorDetail "Unknown id, invalid JSON or fields"
// @Failure     401   {object} middleware.ErrorDetail "Unauthorized"
// @Failure     500   {object} middleware.ErrorDetail "Internal error"
// @Router      /anime [put]
func (h *Handlers) Replace(c *gin.Context) {
	var body validation.AnimePutRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, TitleInvalidJSON, ErrCodeInvalidJSON, "invalid JSON body")
		return
	}
	if err := validation.ValidatePut(body).Err(); err != nil {
		writeError(c, err)
		return
	}
	if err := h.svc.Replace(c.Request.Context(), body); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// Delete godoc
// @ID          deleteAnime
// @Summary     Delete an anime
// @Tags        Anime
// @Security    BasicAuth
// @Param       id   path  int  true  "Anime id"
// @Success     204  "No Content"
// @Failure     400  {object} middleware.ErrorDetail "Unknown or malformed id"
// @Failure     401  {object} middleware.ErrorDetail "Unauthorized"
// @Failure     500  {object} middleware.ErrorDetail "Internal error"
// @Router      /anime/{id} [delete]
func (h *Handlers) Delete(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

// AdminDelete godoc
// @ID          adminDeleteAnime
// @Summary     Delete an anime (admin)
// @Description Same as DELETE /anime/{id} but restricted to ROLE_ADMIN.
// @Tags        Anime
// @Security    BasicAuth
// @Param       id   path  int  true  "Anime id"
// @Success     204  "No Content"
// @Failure     400  {object} middleware.ErrorDetail "Unknown or malformed id"
// @Failure     401  {object} middleware.ErrorDetail "Unauthorized"
// @Failure     403  {object} middleware.ErrorDetail "Caller is not an admin"
// @Failure     500  {object} middleware.ErrorDetail "Internal error"
// @Router      /anime/admin/{id} [delete]
func (h *Handlers) AdminDelete(c *gin.Context) {
	h.Delete(c)
}
