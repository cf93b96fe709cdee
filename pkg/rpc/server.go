// Package rpc provides the JSON-RPC server implementation.
package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stable-net/simnode-go/pkg/evm"
)

// Transport-level JSON-RPC error codes. Method-level codes come from the
// evm controller.
const (
	ErrCodeParseError = -32700
)

// Version information.
const (
	ClientVersion = "simnode-go/v0.1.0"
)

// Request represents a JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response represents a JSON-RPC response.
type Response struct {
	Jsonrpc string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC error.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server exposes the evm_* control methods over HTTP.
type Server struct {
	controller *evm.Controller
	log        zerolog.Logger

	// mu serializes the full validate-then-act span of each request.
	// Mining, time and snapshot operations mutate shared node state and
	// must not interleave; two concurrent mining batches racing on the
	// head-timestamp check would break the monotonicity invariant.
	mu sync.Mutex
}

// NewServer creates a new RPC server around the controller.
func NewServer(controller *evm.Controller, log zerolog.Logger) *Server {
	return &Server{
		controller: controller,
		log:        log.With().Str("component", "rpc").Logger(),
	}
}

// ServeHTTP handles HTTP requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Failed to read request body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, ErrCodeParseError, "Parse error")
		return
	}

	start := time.Now()
	result, rpcErr := s.handleMethod(req.Method, req.Params)

	logEvent := s.log.Debug().Str("method", req.Method).Dur("took", time.Since(start))
	if rpcErr != nil {
		logEvent.Int("code", rpcErr.Code).Str("error", rpcErr.Message).Msg("request failed")
		s.writeError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	logEvent.Msg("request served")

	// Handle nil result specially to output "null" instead of omitting
	var resp interface{}
	if result == nil {
		resp = struct {
			Jsonrpc string      `json:"jsonrpc"`
			ID      interface{} `json:"id"`
			Result  interface{} `json:"result"`
		}{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  nil,
		}
	} else {
		resp = Response{
			Jsonrpc: "2.0",
			ID:      req.ID,
			Result:  result,
		}
	}

	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := Response{
		Jsonrpc: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMethod(method string, params json.RawMessage) (interface{}, *ErrorObject) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.controller.ProcessRequest(method, params)
	if err != nil {
		return nil, &ErrorObject{Code: err.Code, Message: err.Message}
	}
	return result, nil
}
