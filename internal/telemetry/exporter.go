package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves a Collector's metrics over plain net/http, the way the
// teacher's examples wire promhttp.Handler() onto an http.Server rather
// than a web framework (§1's explicit non-goal on framework adapters).
type Exporter struct {
	server *http.Server
}

// NewExporter builds an Exporter bound to addr, serving path with
// collector's metrics. Nothing is started until Start is called.
func NewExporter(addr, path string, collector *Collector) *Exporter {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	return &Exporter{server: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the exporter's HTTP server in a new goroutine. onError, if
// non-nil, receives any error ListenAndServe returns other than
// http.ErrServerClosed.
func (e *Exporter) Start(onError func(error)) {
	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Shutdown gracefully stops the exporter's HTTP server.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.server.Shutdown(ctx)
}
