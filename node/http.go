package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/service"
	"github.com/kkrt-labs/kakarot-rpc-go/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc"
)

type httpService struct {
	srv      *http.Server
	listener net.Listener
}

var _ service.Service = (*httpService)(nil)

func (h *httpService) Run(ctx context.Context) error {
	errCh := make(chan error)
	defer close(errCh)

	var wg conc.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		if err := h.srv.Serve(h.listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		return h.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func makeRPCOverHTTP(listener net.Listener, jsonrpcServer *jsonrpc.Server, log utils.SimpleLogger, metricsEnabled bool) *httpService {
	httpHandler := jsonrpc.NewHTTP(jsonrpcServer, log)
	if metricsEnabled {
		httpHandler = httpHandler.WithListener(makeHTTPMetrics())
	}
	mux := http.NewServeMux()
	mux.Handle("/", httpHandler)
	return &httpService{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: cors.Default().Handler(mux),
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}

func makeRPCOverWebsocket(listener net.Listener, jsonrpcServer *jsonrpc.Server, log utils.SimpleLogger, metricsEnabled bool) *httpService {
	wsHandler := jsonrpc.NewWebsocket(jsonrpcServer, log)
	if metricsEnabled {
		wsHandler = wsHandler.WithListener(makeWSMetrics())
	}
	mux := http.NewServeMux()
	mux.Handle("/", wsHandler)
	return &httpService{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: mux,
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}

func makeMetrics(listener net.Listener) *httpService {
	return &httpService{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{Registry: prometheus.DefaultRegisterer}),
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}

func makePPROF(listener net.Listener) *httpService {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return &httpService{
		srv: &http.Server{
			Addr:    listener.Addr().String(),
			Handler: mux,
			// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
			ReadTimeout: 30 * time.Second,
		},
		listener: listener,
	}
}
