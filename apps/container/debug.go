package container

import (
	"expvar"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/metrics"
)

// StartDebugService registers the metrics and serves them on the debug host:
//
// /metrics - Prometheus metrics.
// /debug/vars - Added to the default mux by importing the expvar package.
func StartDebugService(conf *core.Config, logger core.Logger) {
	metrics.Register()

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}
