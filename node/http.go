package node

import (
	"net/http"

	"github.com/NethermindEth/rpcpeer/metrics"
	"github.com/NethermindEth/rpcpeer/transport"
	"github.com/NethermindEth/rpcpeer/utils"
	"github.com/prometheus/client_golang/prometheus"
)

const logLevelPath = "/log/level"

// makeRPCOverHTTP serves all HTTP requests with a single peer: replies travel
// back on the HTTP response, the peer never sends on its own.
func (n *Node) makeRPCOverHTTP() http.Handler {
	peer := n.newPeer(nil)
	httpHandler := transport.NewHTTP(peer, n.log).WithReadLimit(int64(n.cfg.ReadLimit))

	var handler http.Handler = httpHandler
	if len(n.cfg.CORSOrigins) > 0 {
		handler = httpHandler.WithCORS(n.cfg.CORSOrigins)
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	return mux
}

func (n *Node) makeRPCOverWebsocket() http.Handler {
	wsHandler := transport.NewWebsocket(n.newPeer, n.log).
		WithConnParams(&transport.WebsocketConnParams{
			ReadLimit:     int64(n.cfg.ReadLimit),
			WriteDuration: transport.DefaultWebsocketConnParams().WriteDuration,
			Concurrency:   n.cfg.Concurrency,
		}).
		WithConnListener(n.connListener(websocketService)).
		WithOriginPatterns(n.cfg.CORSOrigins)

	mux := http.NewServeMux()
	mux.Handle("/", wsHandler)
	return mux
}

func makeMetrics(registry *prometheus.Registry, logLevel *utils.LogLevel) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.PrometheusHandler(registry))
	mux.HandleFunc(logLevelPath, func(w http.ResponseWriter, r *http.Request) {
		utils.HTTPLogSettings(w, r, logLevel)
	})
	return mux
}
