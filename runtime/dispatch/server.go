package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parcelops/resolve/runtime/card"
	"github.com/parcelops/resolve/runtime/task"
	"github.com/parcelops/resolve/runtime/telemetry"
)

// JSON-RPC error codes used by the task exchange protocol.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type (
	// Server exposes a Local dispatcher and its directory over JSON-RPC HTTP.
	// Methods: tasks/send, tasks/get, tasks/cancel, agent/card, agent/list.
	Server struct {
		local     *Local
		directory *card.Directory
		logger    telemetry.Logger
	}

	rpcRequest struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		ID      uint64          `json:"id"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	rpcResponse struct {
		JSONRPC string    `json:"jsonrpc"`
		Result  any       `json:"result,omitempty"`
		Error   *rpcError `json:"error,omitempty"`
		ID      uint64    `json:"id"`
	}

	rpcError struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	sendParams struct {
		Agent string      `json:"agent"`
		Task  TaskRequest `json:"task"`
	}

	taskRefParams struct {
		TaskID string `json:"taskId"`
	}

	cardParams struct {
		Name string `json:"name"`
	}
)

// NewServer creates a JSON-RPC server over the local dispatcher. A nil logger
// defaults to the no-op logger.
func NewServer(local *Local, directory *card.Directory, logger telemetry.Logger) (*Server, error) {
	if local == nil {
		return nil, errors.New("local dispatcher is required")
	}
	if directory == nil {
		return nil, errors.New("agent directory is required")
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Server{local: local, directory: directory, logger: logger}, nil
}

// ServeHTTP implements http.Handler for the JSON-RPC endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.write(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error: " + err.Error()}})
		return
	}

	result, rerr := s.dispatch(r, req)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rerr}
	s.write(w, resp)
}

func (s *Server) dispatch(r *http.Request, req rpcRequest) (any, *rpcError) {
	ctx := r.Context()
	switch req.Method {
	case "tasks/send":
		var p sendParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		if err := card.ValidateTaskMessage(&p.Task.Message); err != nil {
			return nil, &rpcError{Code: codeInvalidRequest, Message: err.Error()}
		}
		snap, err := s.local.SendTask(ctx, p.Agent, p.Task)
		if err != nil {
			var terr *TransportError
			if errors.As(err, &terr) {
				return nil, &rpcError{Code: codeServerError, Message: terr.Error()}
			}
			// The delegated work failed but the exchange succeeded: the
			// snapshot carries the failed status.
			s.logger.Warn(ctx, "dispatched task failed", "agent", p.Agent, "task_id", snap.ID, "err", err.Error())
		}
		return snap, nil

	case "tasks/get":
		var p taskRefParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		snap, ok := s.local.GetTask(p.TaskID)
		if !ok {
			return nil, &rpcError{Code: codeServerError, Message: "unknown task " + p.TaskID}
		}
		return snap, nil

	case "tasks/cancel":
		var p taskRefParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		if err := s.local.CancelTask(p.TaskID); err != nil {
			if errors.Is(err, task.ErrInvalidTransition) {
				return nil, &rpcError{Code: codeInvalidRequest, Message: err.Error()}
			}
			return nil, &rpcError{Code: codeServerError, Message: err.Error()}
		}
		snap, _ := s.local.GetTask(p.TaskID)
		return snap, nil

	case "agent/card":
		var p cardParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: err.Error()}
		}
		c, ok := s.directory.Describe(p.Name)
		if !ok {
			return nil, &rpcError{Code: codeServerError, Message: "unknown agent " + p.Name}
		}
		return c, nil

	case "agent/list":
		return s.directory.List(), nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

func (s *Server) write(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(context.Background(), "encode rpc response failed", "err", err.Error())
	}
}
