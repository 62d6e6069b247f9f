package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// DepthArchiveStore is the narrow read surface the archiver needs from the
// depth store.
type DepthArchiveStore interface {
	// ListBefore returns all depth snapshots recorded strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.DepthSnapshot, error)
}

// DepthArchiver moves aged depth snapshots to object storage as JSONL.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here; the caller deletes only after the upload has succeeded.
type DepthArchiver struct {
	writer domain.BlobWriter
	depth  DepthArchiveStore
}

// NewDepthArchiver creates a DepthArchiver.
func NewDepthArchiver(writer domain.BlobWriter, depth DepthArchiveStore) *DepthArchiver {
	return &DepthArchiver{writer: writer, depth: depth}
}

// Archive queries all depth snapshots before the cutoff, serializes them to
// JSONL, and uploads the file at archive/depth/YYYY-MM-DD.jsonl. It returns
// the number of archived records; zero with no error means nothing was due.
func (a *DepthArchiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.depth.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive depth query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive depth marshal: %w", err)
	}

	path := archivePath(before)
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive depth upload: %w", err)
	}

	return int64(len(snaps)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// cutoff date: archive/depth/2026-03-10.jsonl.
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/depth/%s.jsonl", before.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
