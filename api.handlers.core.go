package main

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var EmptyData = struct{}{}

// Statistics holds app stats for ops.
type Statistics struct {
	version   string
	container bool
	runtime   string
	platform  string
	called    uint64
	started   time.Time
	status    map[int]uint64
	mu        *sync.RWMutex
}

// Maintenance holds app maintenance mode infos. The flag is read on every
// public request so it stays lock free, the notice is guarded by mu.
type Maintenance struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	message string
	started time.Time
}

func (m *Maintenance) enable(message string, at time.Time) time.Time {
	m.mu.Lock()
	m.message, m.started = message, at
	m.mu.Unlock()
	m.enabled.Store(true)
	return at
}

func (m *Maintenance) disable() {
	m.enabled.Store(false)
	m.mu.Lock()
	m.message, m.started = "", time.Time{}
	m.mu.Unlock()
}

func (m *Maintenance) info() (bool, string, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled.Load(), m.message, m.started
}

// Services groups the domain services exposed over http.
type Services struct {
	Catalog   CatalogServiceProvider
	Borrowers BorrowerServiceProvider
	Loans     LoanServiceProvider
	Audit     AuditServiceProvider
}

// APIHandler defines the API handler.
type APIHandler struct {
	logger     *zap.Logger
	config     *Config
	stats      *Statistics
	mode       *Maintenance
	clock      Clocker
	idsHandler UIDHandler
	catalog    CatalogServiceProvider
	borrowers  BorrowerServiceProvider
	loans      LoanServiceProvider
	audit      AuditServiceProvider
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(logger *zap.Logger, config *Config, stats *Statistics, clock Clocker, ids UIDHandler, services *Services) *APIHandler {
	m := &Maintenance{}
	stats.status = make(map[int]uint64)
	stats.mu = &sync.RWMutex{}
	if services == nil {
		services = &Services{}
	}
	return &APIHandler{
		logger:     logger,
		config:     config,
		stats:      stats,
		mode:       m,
		clock:      clock,
		idsHandler: ids,
		catalog:    services.Catalog,
		borrowers:  services.Borrowers,
		loans:      services.Loans,
		audit:      services.Audit,
	}
}

// StatusFromError maps a domain failure to its http status code.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFormat),
		errors.Is(err, ErrInvalidStock),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// sendError logs the failure and sends the error response matching err.
// Domain failures carry their own message, anything else is hidden behind
// the generic `failed to <action>` message.
func (api *APIHandler) sendError(w http.ResponseWriter, r *http.Request, action string, err error) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	logger := api.GetLoggerFromContext(r.Context())
	status := StatusFromError(err)
	message := "failed to " + action
	if status != http.StatusInternalServerError {
		message = err.Error()
		logger.Info("request rejected", zap.String("action", action), zap.Int("status", status), zap.Error(err))
	} else {
		logger.Error("failed to "+action, zap.Error(err))
	}
	errResp := NewAPIError(requestID, status, message, EmptyData)
	if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

// sendBadRequest rejects a malformed request.
func (api *APIHandler) sendBadRequest(w http.ResponseWriter, r *http.Request, message string, err error) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("bad request", zap.String("reason", message), zap.Error(err))
	data := interface{}(EmptyData)
	if err != nil {
		data = err.Error()
	}
	errResp := NewAPIError(requestID, http.StatusBadRequest, message, data)
	if err = WriteErrorResponse(r.Context(), w, errResp); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

func (api *APIHandler) sendResponse(w http.ResponseWriter, r *http.Request, status int, message string, total *int, data interface{}) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	resp := GenericResponse(requestID, status, message, total, data)
	if err := WriteResponse(r.Context(), w, resp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.Error(err))
	}
}

// sendPage sends a listing with its pagination envelope.
func sendPage[T any](api *APIHandler, w http.ResponseWriter, r *http.Request, message string, page Page[T]) {
	total := page.TotalItems
	api.sendResponse(w, r, http.StatusOK, message, &total, page)
}

// validID rejects identities which do not carry the expected prefix.
func (api *APIHandler) validID(w http.ResponseWriter, r *http.Request, id string, coll Collection) bool {
	if api.idsHandler.IsValid(id, coll.IDPrefix) {
		return true
	}
	api.sendBadRequest(w, r, "id provided is not valid", errors.New(coll.Name+" id "+id))
	return false
}
