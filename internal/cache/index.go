package cache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	indexFile   = "index.jsonl"
	blobsDir    = "blobs"
	metaFile    = "meta.json"
	metricsFile = "metrics.jsonl"
	lockFile    = "index.lock"
)

// maxLineBytes bounds a single index line; capsules are inlined in rows.
const maxLineBytes = 64 * 1024 * 1024

// readIndex loads every well-formed row in index order. Malformed lines are
// skipped and counted.
func (c *Cache) readIndex() ([]Entry, int, error) {
	f, err := os.Open(c.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()

	var (
		rows      []Entry
		malformed int
		lineNo    int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			malformed++
			c.logger.Warn("skipping malformed index line",
				zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		rows = append(rows, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading index: %w", err)
	}
	return rows, malformed, nil
}

// appendEntry adds one row to the end of the index.
func (c *Cache) appendEntry(e Entry) error {
	line, err := marshalLine(e)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(c.indexPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("appending to index: %w", err)
	}
	return f.Close()
}

// writeIndex replaces the index with rows.
func (c *Cache) writeIndex(rows []Entry) error {
	var buf bytes.Buffer
	for _, e := range rows {
		line, err := marshalLine(e)
		if err != nil {
			return err
		}
		buf.Write(line)
	}
	if err := writeFileAtomic(c.indexPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("rewriting index: %w", err)
	}
	return nil
}

// marshalLine encodes v as compact JSON followed by a newline, leaving
// HTML characters unescaped.
func marshalLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding index row: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.dir, indexFile)
}

// blobFile resolves an entry's blob_path inside the blobs directory. It
// reports false for empty paths and paths escaping the blobs directory.
func (c *Cache) blobFile(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	p := filepath.Join(c.dir, filepath.FromSlash(rel))
	r, err := filepath.Rel(filepath.Join(c.dir, blobsDir), p)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

// entrySize is the compact serialized row plus its blob file size.
func (c *Cache) entrySize(e Entry) int64 {
	line, err := marshalLine(e)
	var size int64
	if err == nil {
		size = int64(len(line) - 1)
	}
	if p, ok := c.blobFile(e.BlobPath); ok {
		if info, err := os.Stat(p); err == nil {
			size += info.Size()
		}
	}
	return size
}
