package jsonrpc

import (
	"net/http"

	"github.com/kkrt-labs/kakarot-rpc-go/utils"
)

const MaxRequestBodySize = 10 * utils.Megabyte

type HTTP struct {
	rpc      *Server
	log      utils.SimpleLogger
	listener NewRequestListener
}

func NewHTTP(rpc *Server, log utils.SimpleLogger) *HTTP {
	return &HTTP{
		rpc:      rpc,
		log:      log,
		listener: &SelectiveListener{},
	}
}

// WithListener registers a NewRequestListener
func (h *HTTP) WithListener(listener NewRequestListener) *HTTP {
	h.listener = listener
	return h
}

// ServeHTTP processes an incoming HTTP request
func (h *HTTP) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodGet {
		status := http.StatusNotFound
		if req.URL.Path == "/" {
			// Handle "ready" checks.
			status = http.StatusOK
		}
		writer.WriteHeader(status)
		return
	}
	if req.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req.Body = http.MaxBytesReader(writer, req.Body, MaxRequestBodySize)
	h.listener.OnNewRequest("any")
	resp, err := h.rpc.HandleReader(req.Context(), req.Body)
	writer.Header().Set("Content-Type", "application/json")
	if err != nil {
		h.log.Errorw("Failed to handle RPC request", "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
	} else {
		writer.WriteHeader(http.StatusOK)
	}
	if resp != nil {
		if _, err = writer.Write(resp); err != nil {
			h.log.Warnw("Failed to write RPC response", "err", err)
		}
	}
}
