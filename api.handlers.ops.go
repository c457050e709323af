package main

import (
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// writeOpsJSON sends an ops payload which does not follow the api envelope.
func (api *APIHandler) writeOpsJSON(w http.ResponseWriter, r *http.Request, status int, what string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := codec.NewEncoder(w).Encode(payload); err != nil {
		api.logger.Error("failed to send "+what+" response",
			zap.String("request.id", GetValueFromContext(r.Context(), ContextRequestID)),
			zap.Error(err),
		)
	}
}

func (api *APIHandler) uptime() string {
	return fmt.Sprintf("%.0f mins", api.clock.Now().Sub(api.stats.started).Minutes())
}

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status tells public users whether the lending api is reachable.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	api.writeOpsJSON(w, r, http.StatusOK, "status", map[string]interface{}{
		"requestid": GetValueFromContext(r.Context(), ContextRequestID),
		"status":    "up & running since " + api.uptime(),
		"message":   "Hello. Lending api is available. Enjoy :)",
	})
}

// NotFound replies to requests which do not match any route.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetValueFromContext(r.Context(), ContextRequestID)
		errResp := NewAPIError(requestID, http.StatusNotFound, "the requested resource does not exist", EmptyData)
		if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
			api.logger.Error("failed to send not found response", zap.String("request.path", r.URL.Path), zap.Error(err))
		}
	})
}

// Maintenance switches the maintenance mode of the public endpoints or shows
// the notice served while it is on.
// Enable the maintenance mode : /ops/maintenance?status=enable&msg=message-to-be-displayed-to-users
// Disable the maintenance mode: /ops/maintenance?status=disable
func (api *APIHandler) Maintenance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	q := r.URL.Query()
	action := ps.ByName("status")
	if action != "show" {
		action = q.Get("status")
	}

	switch action {
	case "enable":
		started := api.mode.enable(q.Get("msg"), api.clock.Now().UTC())
		api.logger.Warn("maintenance mode enabled", zap.String("request.id", requestID), zap.String("reason", q.Get("msg")))
		api.writeOpsJSON(w, r, http.StatusOK, "maintenance", map[string]interface{}{
			"requestid":           requestID,
			"maintenance.started": started.Format(time.RFC1123),
			"maintenance.message": q.Get("msg"),
			"message":             "Maintenance mode enabled successfully.",
		})

	case "disable":
		api.mode.disable()
		api.logger.Warn("maintenance mode disabled", zap.String("request.id", requestID))
		api.writeOpsJSON(w, r, http.StatusOK, "maintenance", map[string]interface{}{
			"requestid": requestID,
			"message":   "Maintenance mode disabled successfully.",
		})

	case "show":
		_, message, started := api.mode.info()
		api.writeOpsJSON(w, r, http.StatusServiceUnavailable, "maintenance", map[string]interface{}{
			"message": "Lending service currently unavailable.",
			"reason":  message,
			"since":   started.Format(time.RFC1123),
		})

	default:
		api.writeOpsJSON(w, r, http.StatusBadRequest, "maintenance", map[string]interface{}{
			"requestid": requestID,
			"message":   "status must be enable or disable.",
		})
	}
}

// export goroutines to be used by expvar handler.
var goroutines = expvar.NewInt("goroutines")

// GetMemStats returns memory statistics with number of goroutines in json.
func GetMemStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	goroutines.Set(int64(runtime.NumGoroutine()))
	expvar.Handler().ServeHTTP(w, r)
}

// RunGC forces the run of the garbage collector asynchronously.
func (api *APIHandler) RunGC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go runtime.GC()
	api.writeOpsJSON(w, r, http.StatusOK, "ops", map[string]string{"called": "go runtime.GC()"})
}

// FreeOSMemory forces a garbage collection and returns as much memory as
// possible to the operating system, asynchronously.
func (api *APIHandler) FreeOSMemory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go debug.FreeOSMemory()
	api.writeOpsJSON(w, r, http.StatusOK, "ops", map[string]string{"called": "go debug.FreeOSMemory()"})
}

// GetStatistics provides runtime and traffic details to the internal ops users.
// The ops request serving these stats is not counted yet in `status`, so it
// is removed from `called` as well.
func (api *APIHandler) GetStatistics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	enabled, message, started := api.mode.info()
	maintenanceStarted := ""
	if !started.IsZero() {
		maintenanceStarted = started.String()
	}
	storage, audit := "", false
	if api.config != nil {
		storage, audit = api.config.Storage.Driver, api.config.Audit.Enable
	}
	called := atomic.LoadUint64(&api.stats.called)
	if called > 0 {
		called--
	}

	api.stats.mu.RLock()
	status := make(map[int]uint64, len(api.stats.status))
	for code, n := range api.stats.status {
		status[code] = n
	}
	api.stats.mu.RUnlock()

	api.writeOpsJSON(w, r, http.StatusOK, "statistics", map[string]interface{}{
		"requestid":     GetValueFromContext(r.Context(), ContextRequestID),
		"app.version":   api.stats.version,
		"app.container": api.stats.container,
		"app.platform":  api.stats.platform,
		"app.storage":   storage,
		"app.audit":     audit,
		"go.version":    api.stats.runtime,
		"called":        called,
		"started":       api.stats.started.Format(time.RFC1123),
		"uptime":        api.uptime(),
		"maintenance": map[string]interface{}{
			"enabled": enabled,
			"started": maintenanceStarted,
			"message": message,
		},
		"status": status,
	})
}

// GetConfigs serves current in-use configurations. Secrets are not exported.
func (api *APIHandler) GetConfigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	api.writeOpsJSON(w, r, http.StatusOK, "settings", map[string]interface{}{"configs": api.config})
}

// profiles lists the runtime profiles exposed under /ops/debug/pprof/.
var profiles = []string{"heap", "allocs", "goroutine", "threadcreate", "block", "mutex"}

// pprofHandlers maps the fixed pprof endpoints to their handlers.
var pprofHandlers = map[string]http.HandlerFunc{
	"":        pprof.Index,
	"profile": pprof.Profile,
	"trace":   pprof.Trace,
	"symbol":  pprof.Symbol,
	"cmdline": pprof.Cmdline,
}

// OpsHandlerWrapper adapts a standard handler to the router signature.
func OpsHandlerWrapper(h http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
