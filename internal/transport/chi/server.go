// Package chi exposes the catalog, dataset and search services over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/datalode/geodex/internal/db"
	"github.com/datalode/geodex/internal/domain/document"
	"github.com/datalode/geodex/internal/domain/fields"
	"github.com/datalode/geodex/internal/domain/product"
	"github.com/datalode/geodex/internal/metrics"
	"github.com/datalode/geodex/internal/repository/dataset"
	cataloguc "github.com/datalode/geodex/internal/usecase/catalog"
	searchuc "github.com/datalode/geodex/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server routes HTTP requests to the catalog, dataset and search services.
type Server struct {
	catalog  *cataloguc.Service
	datasets *dataset.Repo
	search   *searchuc.Service
	pinger   db.Pinger
	logger   *zap.Logger

	maxPageSize   int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog *cataloguc.Service,
	datasets *dataset.Repo,
	search *searchuc.Service,
	pinger db.Pinger,
	maxPageSize int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:     catalog,
		datasets:    datasets,
		search:      search,
		pinger:      pinger,
		maxPageSize: maxPageSize,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(cataloguc.ErrProductNotFound, http.StatusNotFound, "product_not_found"),
		sentinelHandler(cataloguc.ErrProductExists, http.StatusConflict, "product_already_exists"),
		sentinelHandler(db.ErrDatasetNotFound, http.StatusNotFound, "dataset_not_found"),
		sentinelHandler(dataset.ErrDocMismatch, http.StatusBadRequest, "document_mismatch"),
		fieldErrorHandler,
	}
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/", s.CreateProduct)
			r.Get("/", s.ListProducts)
			r.Get("/{product}", s.GetProduct)
			r.Post("/{product}/search", s.SearchDatasets)
			r.Post("/{product}/count", s.CountDatasets)
			r.Post("/{product}/summary", s.SummarizeDatasets)
		})
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", s.AddDataset)
			r.Get("/{id}", s.GetDataset)
			r.Post("/{id}/archive", s.ArchiveDataset)
			r.Post("/{id}/restore", s.RestoreDataset)
		})
	})

	return r
}

type productPayload struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata"`
	SearchFields map[string]any `json:"search_fields"`
}

type productResponse struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Fields      []cataloguc.FieldInfo `json:"fields"`
}

// CreateProduct handles POST /api/v1/products.
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "Product name is required")
		return
	}

	p, err := s.catalog.Add(r.Context(), product.Definition{
		Name:         req.Name,
		Description:  req.Description,
		Metadata:     req.Metadata,
		SearchFields: req.SearchFields,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.describeProduct(p.Name())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListProducts handles GET /api/v1/products.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := s.catalog.List()
	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp, err := s.describeProduct(p.Name())
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		items = append(items, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetProduct handles GET /api/v1/products/{product}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	resp, err := s.describeProduct(chi.URLParam(r, "product"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) describeProduct(name string) (productResponse, error) {
	p, err := s.catalog.Get(name)
	if err != nil {
		return productResponse{}, err
	}
	info, err := s.catalog.DescribeFields(name)
	if err != nil {
		return productResponse{}, err
	}
	return productResponse{
		Name:        p.Name(),
		Description: p.Description(),
		Fields:      info,
	}, nil
}

type addDatasetPayload struct {
	Product  string       `json:"product"`
	Document document.Doc `json:"document"`
}

// AddDataset handles POST /api/v1/datasets. With no product name the product
// is resolved by metadata template match.
func (s *Server) AddDataset(w http.ResponseWriter, r *http.Request) {
	var req addDatasetPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "Dataset document is required")
		return
	}

	id, err := s.datasets.Add(r.Context(), req.Product, req.Document)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/datasets/"+id.String())
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// GetDataset handles GET /api/v1/datasets/{id}.
func (s *Server) GetDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	rec, err := s.datasets.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       rec.ID.String(),
		"product":  rec.Product,
		"archived": rec.Archived,
		"added":    rec.Added,
		"metadata": rec.Metadata,
	})
}

// ArchiveDataset handles POST /api/v1/datasets/{id}/archive.
func (s *Server) ArchiveDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	if err := s.datasets.Archive(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreDataset handles POST /api/v1/datasets/{id}/restore.
func (s *Server) RestoreDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.datasetID(w, r)
	if !ok {
		return
	}
	if err := s.datasets.Restore(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) datasetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Dataset id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type searchPayload struct {
	Query        map[string]any `json:"query"`
	ReturnFields []string       `json:"return_fields"`
	Extent       *extentPayload `json:"extent"`
	Offset       int            `json:"offset"`
	Limit        int            `json:"limit"`
	WithArchived bool           `json:"with_archived"`
}

type extentPayload struct {
	Lat [2]float64 `json:"lat"`
	Lon [2]float64 `json:"lon"`
}

// SearchDatasets handles POST /api/v1/products/{product}/search.
func (s *Server) SearchDatasets(w http.ResponseWriter, r *http.Request) {
	req, ok := s.searchRequest(w, r)
	if !ok {
		return
	}

	res, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CountDatasets handles POST /api/v1/products/{product}/count.
func (s *Server) CountDatasets(w http.ResponseWriter, r *http.Request) {
	req, ok := s.searchRequest(w, r)
	if !ok {
		return
	}

	n, err := s.search.Count(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": n})
}

type summaryPayload struct {
	searchPayload
	TimeField string `json:"time_field"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Period    string `json:"period"`
}

// SummarizeDatasets handles POST /api/v1/products/{product}/summary: dataset
// counts bucketed over a time field.
func (s *Server) SummarizeDatasets(w http.ResponseWriter, r *http.Request) {
	var req summaryPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.TimeField == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "time_field is required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "end must be an RFC 3339 timestamp")
		return
	}

	ucReq, ok := s.buildRequest(w, chi.URLParam(r, "product"), req.searchPayload)
	if !ok {
		return
	}

	buckets, err := s.search.CountOverTime(r.Context(), ucReq, req.TimeField, start, end, searchuc.Period(req.Period))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (s *Server) searchRequest(w http.ResponseWriter, r *http.Request) (*searchuc.Request, bool) {
	var req searchPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return nil, false
	}
	return s.buildRequest(w, chi.URLParam(r, "product"), req)
}

func (s *Server) buildRequest(w http.ResponseWriter, productName string, req searchPayload) (*searchuc.Request, bool) {
	if req.Limit < 0 || req.Limit > s.maxPageSize {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("limit must be between 0 and %d", s.maxPageSize))
		return nil, false
	}

	out := &searchuc.Request{
		Product:      productName,
		Query:        queryFromPayload(req.Query),
		ReturnFields: req.ReturnFields,
		Offset:       req.Offset,
		Limit:        req.Limit,
		WithArchived: req.WithArchived,
	}
	if req.Extent != nil {
		out.Extent = bboxGeometry(req.Extent.Lon, req.Extent.Lat)
	}
	return out, true
}

// queryFromPayload maps a JSON query object onto query terms. Keys are
// sorted so translated predicates have a stable order.
func queryFromPayload(q map[string]any) fields.Query {
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	query := make(fields.Query, 0, len(names))
	for _, name := range names {
		query = append(query, fields.Q(name, queryValue(q[name])))
	}
	return query
}

// queryValue maps JSON operator objects onto domain query values:
// {"begin": a, "end": b} becomes a range, {"not": v} a negation.
func queryValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if inner, ok := m["not"]; ok && len(m) == 1 {
		return fields.Not{Value: queryValue(inner)}
	}
	begin, hasBegin := m["begin"]
	end, hasEnd := m["end"]
	if (hasBegin || hasEnd) && len(m) == (btoi(hasBegin)+btoi(hasEnd)) {
		return fields.Range{Begin: begin, End: end}
	}
	return v
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func bboxGeometry(lon, lat [2]float64) geom.T {
	return geom.NewPolygonFlat(geom.XY, []float64{
		lon[0], lat[0],
		lon[1], lat[0],
		lon[1], lat[1],
		lon[0], lat[1],
		lon[0], lat[0],
	}, []int{10})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status, httpStatus := "healthy", http.StatusOK
	if err := s.pinger.Ping(r.Context()); err != nil {
		checks["database"] = "unreachable"
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// fieldErrorHandler maps field translation and configuration errors onto 400s.
// These error messages are built from client input, so they are safe to return.
func fieldErrorHandler(w http.ResponseWriter, err error) bool {
	var (
		unknownField *fields.UnknownFieldError
		valueErr     *fields.ValueError
		configErr    *fields.ConfigError
	)
	switch {
	case errors.As(err, &unknownField):
		writeError(w, http.StatusBadRequest, "unknown_field", unknownField.Error())
	case errors.As(err, &valueErr):
		writeError(w, http.StatusBadRequest, "invalid_value", valueErr.Error())
	case errors.As(err, &configErr):
		writeError(w, http.StatusBadRequest, "invalid_definition", configErr.Error())
	default:
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
