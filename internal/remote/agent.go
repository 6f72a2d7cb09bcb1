package remote

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"
)

// Agent is the server side of the protocol. It applies file operations to the
// local filesystem and dispatches run requests to its action table.
type Agent struct {
	actions map[string]ActionFunc
	logger  *log.Logger
}

// NewAgent creates an agent with the given action table. A nil logger
// discards operational output.
func NewAgent(actions map[string]ActionFunc, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Agent{
		actions: actions,
		logger:  logger,
	}
}

// ServeConn handles one session: it reads requests until the peer disconnects.
func (a *Agent) ServeConn(conn FrameConn) error {
	defer conn.Close()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		req, err := DecodeRequest(frame)
		if err != nil {
			return err
		}

		resp := a.handle(req)

		out, err := EncodeResponse(resp)
		if err != nil {
			return err
		}
		if err := conn.WriteFrame(out); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// ServeStdio serves exactly one session on stdin/stdout. This is the mode the
// SSH transport starts on the remote host.
func (a *Agent) ServeStdio() error {
	return a.ServeConn(NewStdioConn(os.Stdin, os.Stdout, nil))
}

// ListenAndServe accepts WebSocket sessions on addr until the listener fails.
func (a *Agent) ListenAndServe(addr string) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Printf("Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
			return
		}
		a.logger.Printf("Session opened from %s", r.RemoteAddr)
		if err := a.ServeConn(NewWebsocketConn(conn)); err != nil {
			a.logger.Printf("Session from %s ended with error: %v", r.RemoteAddr, err)
			return
		}
		a.logger.Printf("Session from %s closed", r.RemoteAddr)
	})

	a.logger.Printf("Agent listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// handle executes a single request. Every error is reported to the caller in
// the response rather than terminating the session.
func (a *Agent) handle(req Request) Response {
	switch req.Op {
	case OpHello:
		return Response{OK: true, Version: ProtocolVersion}

	case OpReset:
		if err := os.Remove(req.Path); err != nil && !os.IsNotExist(err) {
			return errResponse("failed to remove %s: %v", req.Path, err)
		}
		return Response{OK: true}

	case OpMkdirAll:
		if err := os.MkdirAll(req.Path, 0755); err != nil {
			return errResponse("failed to create directory %s: %v", req.Path, err)
		}
		return Response{OK: true}

	case OpAppend:
		if err := appendFile(req.Path, req.Data); err != nil {
			return errResponse("failed to append to %s: %v", req.Path, err)
		}
		return Response{OK: true}

	case OpStat:
		stat, err := statFile(req.Path)
		if err != nil {
			return errResponse("failed to stat %s: %v", req.Path, err)
		}
		return Response{OK: true, Stat: stat}

	case OpResolve:
		abs, err := filepath.Abs(req.Path)
		if err != nil {
			return errResponse("failed to resolve %s: %v", req.Path, err)
		}
		return Response{OK: true, Path: abs}

	case OpRun:
		action, ok := a.actions[req.Action]
		if !ok {
			return errResponse("unknown action: %s", req.Action)
		}
		a.logger.Printf("Running action %s %v", req.Action, req.Args)
		output, err := action(req.Args)
		if err != nil {
			return errResponse("action %s failed: %v", req.Action, err)
		}
		return Response{OK: true, Output: output}

	default:
		return errResponse("unknown operation: %s", req.Op)
	}
}

// appendFile opens, writes, and closes on every call; no handle is held open
// across segments.
func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func statFile(path string) (*FileStat, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &FileStat{Path: path, Exists: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &FileStat{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Exists:  true,
	}, nil
}

func errResponse(format string, args ...any) Response {
	return Response{OK: false, Error: fmt.Sprintf(format, args...)}
}
