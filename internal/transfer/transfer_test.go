package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"webstack/internal/config"
	"webstack/internal/remote"
)

// fakeSession records every request and keeps destination files in memory.
type fakeSession struct {
	ops   []remote.Op
	files map[string][]byte

	failAppendAt int // fail the nth append (1-based), 0 disables
	appendCalls  int
}

func newFakeSession() *fakeSession {
	return &fakeSession{files: make(map[string][]byte)}
}

func (f *fakeSession) Call(ctx context.Context, req remote.Request) (*remote.Response, error) {
	f.ops = append(f.ops, req.Op)

	switch req.Op {
	case remote.OpResolve:
		return &remote.Response{OK: true, Path: "/remote" + req.Path}, nil
	case remote.OpReset:
		delete(f.files, req.Path)
		return &remote.Response{OK: true}, nil
	case remote.OpMkdirAll:
		return &remote.Response{OK: true}, nil
	case remote.OpAppend:
		f.appendCalls++
		if f.failAppendAt > 0 && f.appendCalls == f.failAppendAt {
			return nil, fmt.Errorf("agent append failed: disk full")
		}
		f.files[req.Path] = append(f.files[req.Path], req.Data...)
		return &remote.Response{OK: true}, nil
	case remote.OpStat:
		content, ok := f.files[req.Path]
		if !ok {
			return &remote.Response{OK: true, Stat: &remote.FileStat{Path: req.Path, Exists: false}}, nil
		}
		return &remote.Response{OK: true, Stat: &remote.FileStat{
			Path:    req.Path,
			Size:    int64(len(content)),
			ModTime: time.Now(),
			Exists:  true,
		}}, nil
	}
	return nil, fmt.Errorf("unexpected op %s", req.Op)
}

func (f *fakeSession) Close() error { return nil }

// countOps tallies how many times each op was issued.
func (f *fakeSession) countOps() map[remote.Op]int {
	counts := make(map[remote.Op]int)
	for _, op := range f.ops {
		counts[op]++
	}
	return counts
}

func writeSourceFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path, content
}

func newTestUploader(segmentSize int) *Uploader {
	cfg := config.NewDefaultConfig()
	cfg.Transfer.SegmentSize = segmentSize
	return NewUploader(cfg)
}

func TestUploadSegmentsAndVerifies(t *testing.T) {
	r := require.New(t)

	// 2.5 MiB source with 1 MiB segments: two full segments plus a half one.
	const mib = 1024 * 1024
	srcPath, content := writeSourceFile(t, 2*mib+mib/2)

	sess := newFakeSession()
	stat, err := newTestUploader(mib).Upload(context.Background(), sess, srcPath, "/opt/app/app.bin", nil)
	r.NoError(err)

	r.Equal(int64(len(content)), stat.Size)
	r.True(stat.Exists)
	r.True(bytes.Equal(content, sess.files["/remote/opt/app/app.bin"]))

	counts := sess.countOps()
	r.Equal(3, counts[remote.OpAppend])
	r.Equal(1, counts[remote.OpResolve])
	r.Equal(1, counts[remote.OpReset])
	r.Equal(1, counts[remote.OpMkdirAll])
	r.Equal(1, counts[remote.OpStat])

	// Setup happens before the first segment, verification after the last.
	r.Equal(remote.OpResolve, sess.ops[0])
	r.Equal(remote.OpReset, sess.ops[1])
	r.Equal(remote.OpMkdirAll, sess.ops[2])
	r.Equal(remote.OpStat, sess.ops[len(sess.ops)-1])
}

func TestUploadSegmentCount(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		segmentSize int
		wantAppends int
	}{
		{name: "single short segment", size: 100, segmentSize: 1024, wantAppends: 1},
		{name: "exact multiple", size: 4096, segmentSize: 1024, wantAppends: 4},
		{name: "one byte over", size: 4097, segmentSize: 1024, wantAppends: 5},
		{name: "one byte under", size: 4095, segmentSize: 1024, wantAppends: 4},
		{name: "segment equals size", size: 1024, segmentSize: 1024, wantAppends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			srcPath, content := writeSourceFile(t, tt.size)

			sess := newFakeSession()
			_, err := newTestUploader(tt.segmentSize).Upload(context.Background(), sess, srcPath, "/dst/file", nil)
			r.NoError(err)
			r.Equal(tt.wantAppends, sess.countOps()[remote.OpAppend])
			r.True(bytes.Equal(content, sess.files["/remote/dst/file"]))
		})
	}
}

func TestUploadOverwriteIsIdempotent(t *testing.T) {
	r := require.New(t)
	srcPath, content := writeSourceFile(t, 3000)

	sess := newFakeSession()
	uploader := newTestUploader(1024)
	ctx := context.Background()

	_, err := uploader.Upload(ctx, sess, srcPath, "/dst/file", nil)
	r.NoError(err)
	stat, err := uploader.Upload(ctx, sess, srcPath, "/dst/file", nil)
	r.NoError(err)

	// The second upload replaces, never appends to, the first.
	r.Equal(int64(len(content)), stat.Size)
	r.True(bytes.Equal(content, sess.files["/remote/dst/file"]))
}

func TestUploadProgressReachesExactlyOneHundred(t *testing.T) {
	r := require.New(t)
	srcPath, content := writeSourceFile(t, 2500)

	sess := newFakeSession()
	progressCh := make(chan Progress, 16)

	_, err := newTestUploader(1024).Upload(context.Background(), sess, srcPath, "/dst/file", progressCh)
	r.NoError(err)
	close(progressCh)

	var updates []Progress
	for p := range progressCh {
		updates = append(updates, p)
	}

	r.Len(updates, 3)
	var prev float64
	for _, p := range updates {
		r.GreaterOrEqual(p.Percentage, prev)
		r.Equal(uint64(len(content)), p.BytesTotal)
		prev = p.Percentage
	}
	last := updates[len(updates)-1]
	r.Equal(100.0, last.Percentage)
	r.Equal(uint64(len(content)), last.BytesSent)
}

func TestUploadEmptySourceReportsComplete(t *testing.T) {
	r := require.New(t)
	srcPath, _ := writeSourceFile(t, 0)

	sess := newFakeSession()
	progressCh := make(chan Progress, 1)

	stat, err := newTestUploader(1024).Upload(context.Background(), sess, srcPath, "/dst/file", progressCh)
	r.NoError(err)
	close(progressCh)

	r.False(stat.Exists)
	r.Equal(0, sess.countOps()[remote.OpAppend])

	update := <-progressCh
	r.Equal(100.0, update.Percentage)
	r.Equal(uint64(0), update.BytesSent)
}

func TestUploadMissingSourceTouchesNothingRemote(t *testing.T) {
	r := require.New(t)

	sess := newFakeSession()
	_, err := newTestUploader(1024).Upload(context.Background(), sess, "/does/not/exist", "/dst/file", nil)

	r.Error(err)
	r.Empty(sess.ops)
}

func TestUploadFailedSegmentAborts(t *testing.T) {
	r := require.New(t)
	srcPath, _ := writeSourceFile(t, 3000)

	sess := newFakeSession()
	sess.failAppendAt = 2
	_, err := newTestUploader(1024).Upload(context.Background(), sess, srcPath, "/dst/file", nil)

	r.Error(err)
	r.Contains(err.Error(), "offset 1024")
	// No retry: exactly two appends were attempted, no stat afterwards.
	r.Equal(2, sess.countOps()[remote.OpAppend])
	r.Equal(0, sess.countOps()[remote.OpStat])
}
