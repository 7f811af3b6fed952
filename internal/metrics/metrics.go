package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ws_frames_total", Help: "Inbound WebSocket frames by message type"},
		[]string{"type"},
	)
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Ticks applied to the candle store"},
		[]string{"session"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted in order batches"},
		[]string{"symbol", "side"},
	)
	CallbackErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "callback_errors_total", Help: "Strategy callback errors suppressed by the dispatcher"},
	)
	ProtocolErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "protocol_errors_total", Help: "Malformed envelopes on recognized message types"},
	)
)

func init() {
	prometheus.MustRegister(FramesTotal, TicksTotal, OrdersTotal, CallbackErrorsTotal, ProtocolErrorsTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
