package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/engine"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
	redisstore "github.com/facet-db/facet/internal/store/redis"
)

// tenantHeader scopes configuration aggregates per tenant; absent means the
// default tenant.
const tenantHeader = "X-Tenant-ID"

// Handler exposes the engine over HTTP
type Handler struct {
	engine  *engine.Engine
	feed    *Feed
	tokens  *TokenService
	schemas *redisstore.SchemaCache
	limiter *RateLimiter
	logger  *zap.Logger
}

// HandlerOptions carries the handler's dependencies. Tokens and Schemas are
// optional: without tokens the API is open (dev mode), without the cache
// every schema request synthesizes from the aggregates.
type HandlerOptions struct {
	Engine  *engine.Engine
	Feed    *Feed
	Tokens  *TokenService
	Schemas *redisstore.SchemaCache
	Limiter *RateLimiter
	Logger  *zap.Logger
}

// NewHandler builds the router
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:  opts.Engine,
		feed:    opts.Feed,
		tokens:  opts.Tokens,
		schemas: opts.Schemas,
		limiter: opts.Limiter,
		logger:  logger,
	}
}

// Router assembles the chi route tree
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID())
	r.Use(Recovery(h.logger))
	r.Use(Logging(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if h.tokens != nil {
			r.Use(Authenticate(h.tokens))
		}
		// After auth so authenticated callers are budgeted by subject.
		if h.limiter != nil {
			r.Use(RateLimit(h.limiter))
		}

		r.Route("/attributes", func(r chi.Router) {
			r.Post("/", h.createAttribute)
			r.Get("/{id}", h.getAttribute)
			r.Put("/{id}", h.updateAttribute)
		})

		r.Route("/shapes", func(r chi.Router) {
			r.Post("/", h.createShape)
			r.Get("/{id}", h.getShape)
			r.Put("/{id}", h.updateShape)
			r.Get("/{id}/schema", h.getSchema)

			r.Route("/{id}/instances", func(r chi.Router) {
				r.Post("/", h.createInstance)
				r.Get("/", h.queryInstances)
				r.Get("/{instanceID}", h.getInstance)
				r.Put("/{instanceID}", h.updateInstance)
			})
		})

		r.Route("/trees", func(r chi.Router) {
			r.Post("/", h.createTree)
			r.Get("/{id}", h.getTree)

			r.Route("/{id}/categories", func(r chi.Router) {
				r.Post("/", h.createCategory)
				r.Get("/", h.queryCategories)
				r.Get("/{categoryID}", h.getCategory)
				r.Put("/{categoryID}", h.updateCategory)
				r.Post("/{categoryID}/move", h.moveCategory)
			})
		})

		if h.feed != nil {
			r.Get("/feed", h.feed.ServeHTTP)
		}
	})

	return r
}

func tenant(r *http.Request) string {
	return r.Header.Get(tenantHeader)
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func decodeBody(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func (h *Handler) createAttribute(w http.ResponseWriter, r *http.Request) {
	var cfg attr.Configuration
	if err := decodeBody(r, &cfg); err != nil {
		RenderBadRequest(w, "invalid attribute configuration payload: "+err.Error())
		return
	}

	verrs, err := h.engine.CreateAttribute(r.Context(), ActorFrom(r.Context()), &cfg, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusCreated, &cfg)
}

func (h *Handler) getAttribute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid attribute id")
		return
	}
	cfg, err := h.engine.GetAttribute(r.Context(), id, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, cfg)
}

func (h *Handler) updateAttribute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid attribute id")
		return
	}

	var cfg attr.Configuration
	if err := decodeBody(r, &cfg); err != nil {
		RenderBadRequest(w, "invalid attribute configuration payload: "+err.Error())
		return
	}
	cfg.ID = id

	verrs, err := h.engine.UpdateAttribute(r.Context(), ActorFrom(r.Context()), &cfg, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusOK, &cfg)
}

func (h *Handler) createShape(w http.ResponseWriter, r *http.Request) {
	var shape catalog.Shape
	if err := decodeBody(r, &shape); err != nil {
		RenderBadRequest(w, "invalid shape payload: "+err.Error())
		return
	}
	shape.TenantID = tenant(r)

	verrs, err := h.engine.CreateShape(r.Context(), ActorFrom(r.Context()), &shape)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	h.invalidateSchema(r, shape.MachineName)
	RenderJSON(w, http.StatusCreated, &shape)
}

func (h *Handler) getShape(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}
	shape, err := h.engine.GetShape(r.Context(), id, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, shape)
}

func (h *Handler) updateShape(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}

	var shape catalog.Shape
	if err := decodeBody(r, &shape); err != nil {
		RenderBadRequest(w, "invalid shape payload: "+err.Error())
		return
	}
	shape.ID = id
	shape.TenantID = tenant(r)

	verrs, err := h.engine.UpdateShape(r.Context(), ActorFrom(r.Context()), &shape)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	h.invalidateSchema(r, shape.MachineName)
	RenderJSON(w, http.StatusOK, &shape)
}

// getSchema serves the synthesized document schema, cache-first when a
// schema cache is configured.
func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}

	shape, err := h.engine.GetShape(r.Context(), id, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}

	if h.schemas != nil {
		if cached, err := h.schemas.Get(r.Context(), shape.MachineName); err == nil {
			RenderJSON(w, http.StatusOK, cached)
			return
		}
	}

	schema, err := h.engine.Schema(r.Context(), id, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if h.schemas != nil {
		if err := h.schemas.Put(r.Context(), schema); err != nil {
			h.logger.Warn("schema cache write failed", zap.Error(err))
		}
	}
	RenderJSON(w, http.StatusOK, schema)
}

func (h *Handler) invalidateSchema(r *http.Request, name string) {
	if h.schemas == nil {
		return
	}
	if err := h.schemas.Invalidate(r.Context(), name); err != nil {
		h.logger.Warn("schema cache invalidation failed", zap.Error(err))
	}
}

func (h *Handler) createInstance(w http.ResponseWriter, r *http.Request) {
	shapeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}

	var payload map[string]interface{}
	if err := decodeBody(r, &payload); err != nil {
		RenderBadRequest(w, "invalid instance payload: "+err.Error())
		return
	}

	in, verrs, err := h.engine.CreateInstance(r.Context(), ActorFrom(r.Context()), shapeID, tenant(r), payload)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusCreated, in)
}

func (h *Handler) getInstance(w http.ResponseWriter, r *http.Request) {
	shapeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}
	instanceID, ok := pathID(r, "instanceID")
	if !ok {
		RenderBadRequest(w, "invalid instance id")
		return
	}

	in, err := h.engine.GetInstance(r.Context(), shapeID, instanceID)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, in)
}

func (h *Handler) updateInstance(w http.ResponseWriter, r *http.Request) {
	shapeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}
	instanceID, ok := pathID(r, "instanceID")
	if !ok {
		RenderBadRequest(w, "invalid instance id")
		return
	}

	var payload map[string]interface{}
	if err := decodeBody(r, &payload); err != nil {
		RenderBadRequest(w, "invalid instance payload: "+err.Error())
		return
	}

	in, verrs, err := h.engine.UpdateInstance(r.Context(), ActorFrom(r.Context()), shapeID, instanceID, tenant(r), payload)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusOK, in)
}

func (h *Handler) queryInstances(w http.ResponseWriter, r *http.Request) {
	shapeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid shape id")
		return
	}

	page, err := h.engine.QueryInstances(r.Context(), shapeID, tenant(r), filterFromQuery(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, page)
}

func (h *Handler) createTree(w http.ResponseWriter, r *http.Request) {
	var tree catalog.Tree
	if err := decodeBody(r, &tree); err != nil {
		RenderBadRequest(w, "invalid tree payload: "+err.Error())
		return
	}
	tree.TenantID = tenant(r)

	verrs, err := h.engine.CreateTree(r.Context(), ActorFrom(r.Context()), &tree)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusCreated, &tree)
}

func (h *Handler) getTree(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid tree id")
		return
	}
	tree, err := h.engine.GetTree(r.Context(), id, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, tree)
}

// categoryRequest is the category create/update payload: naming and
// placement next to the attribute values.
type categoryRequest struct {
	MachineName string                 `json:"machineName"`
	ParentID    *uuid.UUID             `json:"parentId"`
	Attributes  map[string]interface{} `json:"attributes"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	treeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid tree id")
		return
	}

	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		RenderBadRequest(w, "invalid category payload: "+err.Error())
		return
	}
	parentID := uuid.Nil
	if req.ParentID != nil {
		parentID = *req.ParentID
	}

	cat, verrs, err := h.engine.CreateCategory(r.Context(), ActorFrom(r.Context()), treeID, tenant(r), req.MachineName, parentID, req.Attributes)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusCreated, cat)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	treeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid tree id")
		return
	}
	categoryID, ok := pathID(r, "categoryID")
	if !ok {
		RenderBadRequest(w, "invalid category id")
		return
	}

	cat, err := h.engine.GetCategory(r.Context(), treeID, categoryID, tenant(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, cat)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	treeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid tree id")
		return
	}
	categoryID, ok := pathID(r, "categoryID")
	if !ok {
		RenderBadRequest(w, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		RenderBadRequest(w, "invalid category payload: "+err.Error())
		return
	}

	cat, verrs, err := h.engine.UpdateCategory(r.Context(), ActorFrom(r.Context()), treeID, categoryID, tenant(r), req.Attributes)
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	if verrs != nil {
		RenderValidationErrors(w, verrs)
		return
	}
	RenderJSON(w, http.StatusOK, cat)
}

// moveRequest re-parents a category; a null parent moves it to the root
type moveRequest struct {
	ParentID *uuid.UUID `json:"parentId"`
}

func (h *Handler) moveCategory(w http.ResponseWriter, r *http.Request) {
	treeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid tree id")
		return
	}
	categoryID, ok := pathID(r, "categoryID")
	if !ok {
		RenderBadRequest(w, "invalid category id")
		return
	}

	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		RenderBadRequest(w, "invalid move payload: "+err.Error())
		return
	}
	parentID := uuid.Nil
	if req.ParentID != nil {
		parentID = *req.ParentID
	}

	if err := h.engine.MoveCategory(r.Context(), ActorFrom(r.Context()), treeID, categoryID, parentID, tenant(r)); err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (h *Handler) queryCategories(w http.ResponseWriter, r *http.Request) {
	treeID, ok := pathID(r, "id")
	if !ok {
		RenderBadRequest(w, "invalid tree id")
		return
	}

	page, err := h.engine.QueryCategories(r.Context(), treeID, tenant(r), filterFromQuery(r))
	if err != nil {
		RenderError(w, h.logger, err)
		return
	}
	RenderJSON(w, http.StatusOK, page)
}

// filterFromQuery maps query parameters onto the store filter: reserved
// names control paging and ordering, everything else becomes an equality
// match on a document field.
func filterFromQuery(r *http.Request) store.Filter {
	query := r.URL.Query()
	filter := store.Filter{
		OrderBy:    query.Get("orderBy"),
		PathPrefix: query.Get("pathPrefix"),
	}
	filter.Descending, _ = strconv.ParseBool(query.Get("desc"))
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))

	for name, values := range query {
		switch name {
		case "orderBy", "pathPrefix", "desc", "limit", "offset":
			continue
		}
		if len(values) > 0 && projectionField(name) {
			if filter.Equals == nil {
				filter.Equals = make(map[string]interface{})
			}
			filter.Equals[name] = values[0]
		}
	}
	return filter
}

// projectionField reports whether a query parameter may address a document
// field
func projectionField(name string) bool {
	if name == "" {
		return false
	}
	if name == projection.KeyFieldPath || name == projection.InheritedGroup {
		return false
	}
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}
