package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// QuoteArchiveStore is the slice of the quote store the archiver needs: a
// time-ranged batch read and a delete scoped to exactly the rows that were
// uploaded.
type QuoteArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Quote, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// ArchiveWriter uploads archive objects.
type ArchiveWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ArchiveChecker verifies that an uploaded object is present before the source
// rows are deleted.
type ArchiveChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// archiveBatchSize bounds the rows pulled per store read during an archive
// run.
const archiveBatchSize = 1000

// ArchiveImpl archives aged quote rows: it drains everything before the
// cutoff from the store, serializes it to JSONL, uploads the file, verifies
// the object exists, and only then deletes the rows from the primary store.
type ArchiveImpl struct {
	writer ArchiveWriter
	reader ArchiveChecker
	quotes QuoteArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer ArchiveWriter, reader ArchiveChecker, quotes QuoteArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		quotes: quotes,
	}
}

// ArchiveQuotes archives every quote created before the cutoff, one batch at
// a time, and returns the number of rows removed from the primary store. Each
// batch is uploaded to its own object key and the delete covers exactly the
// uploaded rows, so a failed run leaves nothing lost: the next run picks up
// the remaining rows.
func (a *ArchiveImpl) ArchiveQuotes(ctx context.Context, cutoff time.Time) (int64, error) {
	runStamp := time.Now().UTC()

	var deleted int64
	for seq := 1; ; seq++ {
		batch, err := a.quotes.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return deleted, fmt.Errorf("s3blob: archive quotes query: %w", err)
		}
		if len(batch) == 0 {
			return deleted, nil
		}

		buf, err := marshalJSONL(batch)
		if err != nil {
			return deleted, fmt.Errorf("s3blob: archive quotes marshal: %w", err)
		}

		path := archivePath("quotes", cutoff, runStamp, seq)
		if len(buf) >= int(minPartSize) {
			err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
		} else {
			err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
		}
		if err != nil {
			return deleted, fmt.Errorf("s3blob: archive quotes upload: %w", err)
		}

		// Delete only after the uploaded object is confirmed present.
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return deleted, fmt.Errorf("s3blob: archive quotes verify: %w", err)
		}
		if !ok {
			return deleted, fmt.Errorf("s3blob: archive quotes verify: object %s missing after upload", path)
		}

		// Delete by ID so rows sharing the last row's created_at that fell
		// past the batch limit survive until their own batch is uploaded.
		ids := make([]string, len(batch))
		for i, q := range batch {
			ids[i] = q.ID
		}
		n, err := a.quotes.DeleteByIDs(ctx, ids)
		if err != nil {
			return deleted, fmt.Errorf("s3blob: archive quotes delete: %w", err)
		}
		deleted += n

		if len(batch) < archiveBatchSize {
			return deleted, nil
		}
	}
}

// archivePath builds the S3 key for an archive file. Keys are partitioned by
// the cutoff's year-month and carry the run time plus a per-batch sequence
// number, so no two batches of a run (or of repeated runs) share a key.
//
//	archive/quotes/2026-08/20260824T120000Z-0001.jsonl
func archivePath(kind string, cutoff, runStamp time.Time, seq int) string {
	return fmt.Sprintf("archive/%s/%s/%s-%04d.jsonl",
		kind, cutoff.Format("2006-01"), runStamp.Format("20060102T150405Z"), seq)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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
