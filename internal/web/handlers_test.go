package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/engine"
	"github.com/facet-db/facet/internal/hierarchy"
	"github.com/facet-db/facet/internal/serial"
	"github.com/facet-db/facet/internal/store/memory"
)

type apiHarness struct {
	router http.Handler
	engine *engine.Engine
	feed   *Feed
}

func newAPIHarness(t *testing.T, tokens *TokenService) *apiHarness {
	t.Helper()
	aggregates := memory.NewAggregateStore()
	documents := memory.NewDocumentStore()
	feed := NewFeed(zap.NewNop())

	eng := engine.New(engine.Options{
		Aggregates: aggregates,
		Documents:  documents,
		Serials:    serial.NewGenerator(memory.NewItemStore(), 0, nil),
		Hierarchy:  hierarchy.New(aggregates, documents, hierarchy.PolicyMerge, zap.NewNop()),
		Publisher:  feed,
		Logger:     zap.NewNop(),
	})

	h := NewHandler(HandlerOptions{
		Engine: eng,
		Feed:   feed,
		Tokens: tokens,
		Logger: zap.NewNop(),
	})
	return &apiHarness{router: h.Router(), engine: eng, feed: feed}
}

func (h *apiHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// bookShape registers a shape with a free-text title and a required page
// count over the API and returns its id.
func (h *apiHarness) bookShape(t *testing.T) uuid.UUID {
	t.Helper()
	one := float64(1)

	var refs []catalog.AttributeReference
	for _, cfg := range []*attr.Configuration{
		{Kind: attr.KindText, MachineName: "title", Name: attr.NewLocalizedString("Title")},
		{Kind: attr.KindNumber, MachineName: "pages", Name: attr.NewLocalizedString("Pages"), Required: true, Subtype: attr.NumberInteger, Minimum: &one},
	} {
		rec := h.do(t, http.MethodPost, "/api/v1/attributes", cfg)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created attr.Configuration
		decodeInto(t, rec, &created)
		refs = append(refs, catalog.AttributeReference{ConfigurationID: created.ID, MachineName: created.MachineName})
	}

	rec := h.do(t, http.MethodPost, "/api/v1/shapes", &catalog.Shape{
		MachineName: "book",
		Name:        attr.NewLocalizedString("Book"),
		Attributes:  refs,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var shape catalog.Shape
	decodeInto(t, rec, &shape)
	return shape.ID
}

func TestHealthz(t *testing.T) {
	h := newAPIHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateAttributeValidation(t *testing.T) {
	h := newAPIHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/v1/attributes", &attr.Configuration{
		Kind:        attr.KindSerial,
		MachineName: "sku",
		Name:        attr.NewLocalizedString("SKU"),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}
	decodeInto(t, rec, &envelope)
	assert.Contains(t, envelope.Fields["sku"], "increment must be greater than zero")
}

func TestCreateAttributeBadJSON(t *testing.T) {
	h := newAPIHarness(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attributes", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetShapeNotFound(t *testing.T) {
	h := newAPIHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/shapes/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var envelope errorResponse
	decodeInto(t, rec, &envelope)
	assert.Equal(t, "not_found", envelope.Error)
}

func TestInstanceLifecycle(t *testing.T) {
	h := newAPIHarness(t, nil)
	shapeID := h.bookShape(t)
	base := "/api/v1/shapes/" + shapeID.String() + "/instances"

	// Missing required attribute.
	rec := h.do(t, http.MethodPost, base, map[string]interface{}{"title": "Dune"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope struct {
		Fields map[string][]string `json:"fields"`
	}
	decodeInto(t, rec, &envelope)
	assert.Contains(t, envelope.Fields["pages"], attr.RequiredMessage)

	// Valid create.
	rec = h.do(t, http.MethodPost, base, map[string]interface{}{"title": "Dune", "pages": 412})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created catalog.Instance
	decodeInto(t, rec, &created)
	require.NotEqual(t, uuid.Nil, created.ID)

	// Read it back.
	rec = h.do(t, http.MethodGet, base+"/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Update keeps unmentioned attributes.
	rec = h.do(t, http.MethodPut, base+"/"+created.ID.String(), map[string]interface{}{"pages": 896})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated catalog.Instance
	decodeInto(t, rec, &updated)
	title := updated.Attribute("title")
	require.NotNil(t, title)
	assert.Equal(t, "Dune", title.Value())
}

func TestQueryInstancesWithFilters(t *testing.T) {
	h := newAPIHarness(t, nil)
	shapeID := h.bookShape(t)
	base := "/api/v1/shapes/" + shapeID.String() + "/instances"

	for i, title := range []string{"Dune", "Hyperion", "Dune"} {
		rec := h.do(t, http.MethodPost, base, map[string]interface{}{"title": title, "pages": 100 + i})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := h.do(t, http.MethodGet, base+"?title=Dune&orderBy=pages&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page struct {
		Total int                      `json:"total"`
		Items []map[string]interface{} `json:"items"`
	}
	decodeInto(t, rec, &page)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	for _, doc := range page.Items {
		assert.Equal(t, "Dune", doc["title"])
	}
}

func TestSchemaEndpoint(t *testing.T) {
	h := newAPIHarness(t, nil)
	shapeID := h.bookShape(t)

	rec := h.do(t, http.MethodGet, "/api/v1/shapes/"+shapeID.String()+"/schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var schema struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	decodeInto(t, rec, &schema)
	assert.Equal(t, "book", schema.Name)

	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "title")
	assert.Contains(t, names, "pages")
	assert.Contains(t, names, "id")
}

func TestCategoryRoutes(t *testing.T) {
	h := newAPIHarness(t, nil)
	shapeID := h.bookShape(t)

	rec := h.do(t, http.MethodPost, "/api/v1/trees", &catalog.Tree{
		MachineName: "genres",
		ShapeID:     shapeID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tree catalog.Tree
	decodeInto(t, rec, &tree)
	base := "/api/v1/trees/" + tree.ID.String() + "/categories"

	rec = h.do(t, http.MethodPost, base, map[string]interface{}{
		"machineName": "fiction",
		"attributes":  map[string]interface{}{"title": "Fiction", "pages": 1},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var fiction catalog.Category
	decodeInto(t, rec, &fiction)

	rec = h.do(t, http.MethodPost, base, map[string]interface{}{
		"machineName": "scifi",
		"parentId":    fiction.ID,
		"attributes":  map[string]interface{}{"title": "Science fiction", "pages": 1},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var scifi catalog.Category
	decodeInto(t, rec, &scifi)
	placement, ok := scifi.PathInTree(tree.ID)
	require.True(t, ok)
	assert.Equal(t, fiction.ID, placement.ParentID)

	// Moving the parent under its own child is a conflict.
	rec = h.do(t, http.MethodPost, fmt.Sprintf("%s/%s/move", base, fiction.ID), map[string]interface{}{
		"parentId": scifi.ID,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Moving the child to the root works.
	rec = h.do(t, http.MethodPost, fmt.Sprintf("%s/%s/move", base, scifi.ID), map[string]interface{}{
		"parentId": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, base+"/"+scifi.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var moved catalog.Category
	decodeInto(t, rec, &moved)
	placement, ok = moved.PathInTree(tree.ID)
	require.True(t, ok)
	assert.Equal(t, uuid.Nil, placement.ParentID)
}

func TestAuthenticateGuardsAPI(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Minute)
	h := newAPIHarness(t, tokens)

	// No token.
	rec := h.do(t, http.MethodGet, "/api/v1/shapes/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shapes/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token reaches the handler.
	token, err := tokens.Issue("alice")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/shapes/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Health stays open.
	rec = h.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	h := newAPIHarness(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	rec = h.do(t, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestFilterFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&offset=10&orderBy=title&desc=true&pathPrefix=/a/b&title=Dune&bad-name=x", nil)
	filter := filterFromQuery(req)

	assert.Equal(t, 5, filter.Limit)
	assert.Equal(t, 10, filter.Offset)
	assert.Equal(t, "title", filter.OrderBy)
	assert.True(t, filter.Descending)
	assert.Equal(t, "/a/b", filter.PathPrefix)
	assert.Equal(t, map[string]interface{}{"title": "Dune"}, filter.Equals)
}

func TestTenantIsolation(t *testing.T) {
	h := newAPIHarness(t, nil)
	shapeID := h.bookShape(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shapes/"+shapeID.String(), nil)
	req.Header.Set(tenantHeader, "other-tenant")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContextCancellationMapsToUnavailable(t *testing.T) {
	h := newAPIHarness(t, nil)
	shapeID := h.bookShape(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shapes/"+shapeID.String()+"/instances", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
