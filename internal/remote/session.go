package remote

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// FrameConn carries whole protocol frames over some transport. Implementations
// exist for stdio pipes (SSH), WebSocket connections, and in-memory pairs in
// tests.
type FrameConn interface {
	WriteFrame(data []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}

// Session is the caller side of an open agent connection. A session serves one
// logical caller at a time and must be closed when no longer needed.
type Session interface {
	Call(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// session drives the request/response protocol over a FrameConn.
type session struct {
	conn FrameConn

	mu     sync.Mutex
	closed bool
}

// NewSession performs the hello handshake over conn and returns the session.
// The conn is closed when the handshake fails.
func NewSession(ctx context.Context, conn FrameConn) (Session, error) {
	s := &session{conn: conn}

	resp, err := s.Call(ctx, Request{Op: OpHello, Version: ProtocolVersion})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("agent handshake failed: %w", err)
	}
	if resp.Version != ProtocolVersion {
		conn.Close()
		return nil, fmt.Errorf("%w: agent speaks version %d, expected %d",
			ErrVersionMismatch, resp.Version, ProtocolVersion)
	}

	return s, nil
}

// Call sends one request and blocks until its response arrives. The session is
// used by exactly one caller at a time; the mutex only guards against misuse.
func (s *session) Call(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	frame, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.conn.WriteFrame(frame); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", req.Op, err)
	}

	type result struct {
		resp Response
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		data, err := s.conn.ReadFrame()
		if err != nil {
			resultCh <- result{err: fmt.Errorf("failed to read %s response: %w", req.Op, err)}
			return
		}
		resp, err := DecodeResponse(data)
		resultCh <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		// Unblock the pending read; the session is unusable afterwards.
		s.closed = true
		s.conn.Close()
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, r.err
		}
		if !r.resp.OK {
			return nil, fmt.Errorf("agent %s failed: %s", req.Op, r.resp.Error)
		}
		return &r.resp, nil
	}
}

// Close closes the underlying transport.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// ResetFile deletes the remote file at path if it exists.
func ResetFile(ctx context.Context, s Session, path string) error {
	_, err := s.Call(ctx, Request{Op: OpReset, Path: path})
	return err
}

// EnsureDir creates the remote directory at path, parents included.
func EnsureDir(ctx context.Context, s Session, path string) error {
	_, err := s.Call(ctx, Request{Op: OpMkdirAll, Path: path})
	return err
}

// AppendChunk appends data to the remote file at path. The agent opens,
// writes, and closes the file on every call.
func AppendChunk(ctx context.Context, s Session, path string, data []byte) error {
	_, err := s.Call(ctx, Request{Op: OpAppend, Path: path, Data: data})
	return err
}

// StatFile reports metadata for the remote file at path.
func StatFile(ctx context.Context, s Session, path string) (*FileStat, error) {
	resp, err := s.Call(ctx, Request{Op: OpStat, Path: path})
	if err != nil {
		return nil, err
	}
	if resp.Stat == nil {
		return nil, fmt.Errorf("agent stat returned no metadata for %s", path)
	}
	return resp.Stat, nil
}

// ResolvePath resolves path against the agent's working directory, so relative
// destinations are interpreted on the remote side rather than the caller's.
func ResolvePath(ctx context.Context, s Session, path string) (string, error) {
	resp, err := s.Call(ctx, Request{Op: OpResolve, Path: path})
	if err != nil {
		return "", err
	}
	return resp.Path, nil
}

// RunAction invokes a named configuration action on the agent.
func RunAction(ctx context.Context, s Session, action string, args ...string) (string, error) {
	resp, err := s.Call(ctx, Request{Op: OpRun, Action: action, Args: args})
	if err != nil {
		return "", err
	}
	return resp.Output, nil
}

// stdioConn frames newline-delimited JSON over a read/write pair, used for
// agent sessions running over an SSH channel or local pipes.
type stdioConn struct {
	r      *bufio.Reader
	w      io.Writer
	closer io.Closer
}

// NewStdioConn wraps r/w as a FrameConn. closer may be nil.
func NewStdioConn(r io.Reader, w io.Writer, closer io.Closer) FrameConn {
	return &stdioConn{
		// Frames carry base64 chunk payloads; size the reader for the
		// default 1 MiB segment with headroom.
		r:      bufio.NewReaderSize(r, 4*1024*1024),
		w:      w,
		closer: closer,
	}
}

func (c *stdioConn) WriteFrame(data []byte) error {
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *stdioConn) ReadFrame() ([]byte, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return line[:len(line)-1], nil
}

func (c *stdioConn) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
