package transfer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"webstack/internal/config"
	"webstack/internal/remote"
	"webstack/pkg/utils"
)

// Progress reports chunked transfer state after each segment.
type Progress struct {
	BytesSent  uint64
	BytesTotal uint64
	Percentage float64
}

// Uploader copies local files to a remote host over an agent session, one
// bounded segment per round trip.
type Uploader struct {
	segmentSize int
}

// NewUploader creates an uploader using the configured segment size.
func NewUploader(cfg *config.Config) *Uploader {
	return &Uploader{
		segmentSize: cfg.Transfer.SegmentSize,
	}
}

// Upload copies the full byte content of srcPath to destPath on the host
// behind sess. Any existing destination content is deleted first, so repeated
// uploads always yield exactly one copy of the source. Progress updates are
// sent to progressCh after every segment when it is non-nil; the caller must
// consume them. The returned stat is the remote file as observed after the
// last segment.
func (u *Uploader) Upload(ctx context.Context, sess remote.Session, srcPath, destPath string, progressCh chan<- Progress) (*remote.FileStat, error) {
	// Open and size the source before touching the remote side, so a missing
	// or unreadable source never disturbs the destination.
	file, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get source file info: %w", err)
	}
	totalBytes := uint64(stat.Size())

	// Destination paths are resolved by the agent, so relative destinations
	// land relative to the remote session rather than the local invoker.
	resolved, err := remote.ResolvePath(ctx, sess, destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination path: %w", err)
	}

	// Reset the destination once, before any segment: stale content is
	// deleted and the parent directory is created if absent.
	if err := remote.ResetFile(ctx, sess, resolved); err != nil {
		return nil, fmt.Errorf("failed to reset destination: %w", err)
	}
	if err := remote.EnsureDir(ctx, sess, path.Dir(resolved)); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	log.Printf("Uploading %s (%s) to %s", srcPath, utils.FormatFileSize(stat.Size()), resolved)

	var bytesSent uint64
	buffer := make([]byte, u.segmentSize)
	for {
		n, err := file.Read(buffer)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}

		// Only the final segment may be short; send exactly the bytes read,
		// never the tail of the buffer.
		if err := remote.AppendChunk(ctx, sess, resolved, buffer[:n]); err != nil {
			return nil, fmt.Errorf("failed to send segment at offset %d: %w", bytesSent, err)
		}

		bytesSent += uint64(n)
		if progressCh != nil && totalBytes > 0 {
			progressCh <- Progress{
				BytesSent:  bytesSent,
				BytesTotal: totalBytes,
				Percentage: float64(bytesSent) / float64(totalBytes) * 100.0,
			}
		}
	}

	if progressCh != nil && totalBytes == 0 {
		progressCh <- Progress{BytesSent: 0, BytesTotal: 0, Percentage: 100.0}
	}

	// One final round trip on the same session confirms what actually landed.
	remoteStat, err := remote.StatFile(ctx, sess, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to verify destination: %w", err)
	}
	if !remoteStat.Exists && totalBytes > 0 {
		return nil, fmt.Errorf("destination %s missing after transfer", resolved)
	}
	if remoteStat.Exists && remoteStat.Size != int64(bytesSent) {
		return nil, fmt.Errorf("destination size mismatch: sent %d bytes, remote has %d", bytesSent, remoteStat.Size)
	}

	log.Printf("Upload completed: %s, %d bytes", resolved, bytesSent)
	return remoteStat, nil
}
