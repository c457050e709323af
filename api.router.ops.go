package main

import (
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

const opsProfilerPath = "/ops/debug/pprof/"

// SetupOpsRoutes injects internal operations related endpoints. Profiling
// endpoints are only exposed when the profiler is enabled.
func (api *APIHandler) SetupOpsRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.GET("/ops/configs", m.ops(api.GetConfigs))
	router.GET("/ops/stats", m.ops(api.GetStatistics))
	router.GET("/ops/maintenance", m.ops(api.Maintenance))
	router.GET("/ops/debug/vars", m.ops(GetMemStats))
	router.GET("/ops/debug/gc", m.ops(api.RunGC))
	router.GET("/ops/debug/fos", m.ops(api.FreeOSMemory))

	if !api.config.ProfilerEnable {
		return router
	}
	for name, handler := range pprofHandlers {
		router.GET(opsProfilerPath+name, m.ops(OpsHandlerWrapper(handler)))
	}
	for _, name := range profiles {
		router.GET(opsProfilerPath+name, m.ops(OpsHandlerWrapper(pprof.Handler(name))))
	}
	return router
}
