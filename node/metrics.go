package node

import (
	"strconv"
	"time"

	"github.com/kkrt-labs/kakarot-rpc-go/jsonrpc"
	"github.com/kkrt-labs/kakarot-rpc-go/rpc"
	"github.com/kkrt-labs/kakarot-rpc-go/starknet"
	"github.com/prometheus/client_golang/prometheus"
)

func makeHTTPMetrics() jsonrpc.NewRequestListener {
	reqCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "http",
		Name:      "requests",
	})
	prometheus.MustRegister(reqCounter)

	return &jsonrpc.SelectiveListener{
		OnNewRequestCb: func(method string) {
			reqCounter.Inc()
		},
	}
}

func makeWSMetrics() jsonrpc.NewRequestListener {
	reqCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "ws",
		Name:      "requests",
	})
	prometheus.MustRegister(reqCounter)

	return &jsonrpc.SelectiveListener{
		OnNewRequestCb: func(method string) {
			reqCounter.Inc()
		},
	}
}

func makeRPCMetrics(version string) jsonrpc.EventListener {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "server",
		Name:      "requests",
	}, []string{"method", "version"})
	failedRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "server",
		Name:      "failed_requests",
	}, []string{"method", "version", "error_code"})
	requestLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rpc",
		Subsystem: "server",
		Name:      "requests_latency",
	}, []string{"method", "version"})
	prometheus.MustRegister(requests, failedRequests, requestLatencies)

	return &jsonrpc.SelectiveListener{
		OnNewRequestCb: func(method string) {
			requests.WithLabelValues(method, version).Inc()
		},
		OnRequestHandledCb: func(method string, took time.Duration) {
			requestLatencies.WithLabelValues(method, version).Observe(took.Seconds())
		},
		OnRequestFailedCb: func(method string, data any) {
			var errorCode string
			if rpcErr, ok := data.(*jsonrpc.Error); ok {
				errorCode = strconv.Itoa(rpcErr.Code)
			}

			failedRequests.WithLabelValues(method, version, errorCode).Inc()
		},
	}
}

func makeProviderMetrics() starknet.EventListener {
	requestLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "starknet",
		Subsystem: "provider",
		Name:      "requests_latency",
	}, []string{"method", "status"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "starknet",
		Subsystem: "provider",
		Name:      "retries",
	}, []string{"method"})
	prometheus.MustRegister(requestLatencies, retries)

	return &starknet.SelectiveListener{
		OnResponseCb: func(method string, status int, took time.Duration) {
			requestLatencies.WithLabelValues(method, strconv.Itoa(status)).Observe(took.Seconds())
		},
		OnRetryCb: func(method string, attempt int) {
			retries.WithLabelValues(method).Inc()
		},
	}
}

func makeTranslationMetrics() rpc.EventListener {
	droppedEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rpc",
		Subsystem: "translation",
		Name:      "dropped_events",
	})
	prometheus.MustRegister(droppedEvents)

	return &rpc.SelectiveListener{
		OnTranslationWarningCb: func(reason string) {
			droppedEvents.Inc()
		},
	}
}

func makeGatewayMetrics(version string) {
	prometheus.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "kakarot_rpc_info",
		Help:        "Gateway version information.",
		ConstLabels: prometheus.Labels{"version": version},
	}))
}
