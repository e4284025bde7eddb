package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Archive compresses srcPath into archiveDir/{session-id}.jsonl.zst.
// Archived transcripts stay readable by the collector through Open.
// Returns the archive path.
func Archive(srcPath, archiveDir string) (string, error) {
	sessionID := extractSessionID(srcPath)
	if sessionID == "" {
		return "", fmt.Errorf("cannot extract session ID from %s", srcPath)
	}

	destPath := ArchivePath(sessionID, archiveDir)

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	// Write beside the destination and rename so a concurrent reader never
	// sees a half-written frame.
	tmp, err := os.CreateTemp(archiveDir, ".archive-*.zst")
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		tmp.Close()
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("finalize compression: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", fmt.Errorf("place archive: %w", err)
	}

	return destPath, nil
}

// Open returns a reader over a transcript's JSONL bytes, decompressing
// .jsonl.zst archives on the fly. The caller must Close it.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	decoder, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdReadCloser{Decoder: decoder, file: f}, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

// IsArchived returns true if an archive file exists for the given session ID.
func IsArchived(sessionID, archiveDir string) bool {
	_, err := os.Stat(ArchivePath(sessionID, archiveDir))
	return err == nil
}

// ArchivePath returns the deterministic archive path for a session ID.
func ArchivePath(sessionID, archiveDir string) string {
	return filepath.Join(archiveDir, sessionID+".jsonl.zst")
}

func extractSessionID(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".jsonl.zst") {
		return strings.TrimSuffix(base, ".jsonl.zst")
	}
	if strings.HasSuffix(base, ".jsonl") {
		return strings.TrimSuffix(base, ".jsonl")
	}
	return ""
}
