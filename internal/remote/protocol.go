package remote

import (
	"errors"
	"fmt"
	"time"

	"webstack/pkg/utils"
)

// ProtocolVersion is checked during the hello handshake. A session is never
// established against an agent speaking a different version.
const ProtocolVersion = 1

var (
	ErrVersionMismatch = errors.New("agent protocol version mismatch")
	ErrSessionClosed   = errors.New("session is closed")
)

// Op identifies a discrete agent operation. The agent never accepts
// executable payloads; every remote effect is one of these fixed operations.
type Op string

const (
	OpHello    Op = "hello"    // version handshake
	OpReset    Op = "reset"    // delete the file at Path if present
	OpMkdirAll Op = "mkdirall" // create the directory at Path, parents included
	OpAppend   Op = "append"   // append Data to the file at Path
	OpStat     Op = "stat"     // report metadata for the file at Path
	OpResolve  Op = "resolve"  // resolve Path against the agent's working directory
	OpRun      Op = "run"      // invoke the named configuration action
)

// Request is a single operation sent to the agent.
type Request struct {
	Op      Op       `json:"op"`
	Version int      `json:"version,omitempty"`
	Path    string   `json:"path,omitempty"`
	Data    []byte   `json:"data,omitempty"`
	Action  string   `json:"action,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// Response is the agent's reply to a single Request.
type Response struct {
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	Version int       `json:"version,omitempty"`
	Path    string    `json:"path,omitempty"`
	Stat    *FileStat `json:"stat,omitempty"`
	Output  string    `json:"output,omitempty"`
}

// FileStat describes a remote file as observed by the agent.
type FileStat struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Exists  bool      `json:"exists"`
}

// EncodeRequest converts a Request to a wire frame.
func EncodeRequest(req Request) ([]byte, error) {
	data, err := utils.EncodeJSON(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest converts a wire frame back to a Request.
func DecodeRequest(data []byte) (Request, error) {
	req, err := utils.DecodeJSON[Request](data)
	if err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

// EncodeResponse converts a Response to a wire frame.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := utils.EncodeJSON(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return data, nil
}

// DecodeResponse converts a wire frame back to a Response.
func DecodeResponse(data []byte) (Response, error) {
	resp, err := utils.DecodeJSON[Response](data)
	if err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
