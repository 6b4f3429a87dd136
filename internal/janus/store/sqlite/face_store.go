package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	dbpkg "github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

type FaceTemplateStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewFaceTemplateStore(db *sql.DB, writer *dbpkg.Worker) *FaceTemplateStore {
	return &FaceTemplateStore{db: db, writer: writer}
}

func (s *FaceTemplateStore) PutTemplate(ctx context.Context, t store.FaceTemplate) error {
	blob := encodeEmbedding(t.Embedding)
	capturedMs := msOrNow(t.CapturedAt)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO face_templates(user_id, dims, embedding, captured_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  dims = excluded.dims,
  embedding = excluded.embedding,
  captured_at_ms = excluded.captured_at_ms;
`, t.UserID, len(t.Embedding), blob, capturedMs); err != nil {
			return fmt.Errorf("PutTemplate: %w", err)
		}
		return nil
	})
}

func (s *FaceTemplateStore) GetTemplate(ctx context.Context, userID string) (store.FaceTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, dims, embedding, captured_at_ms FROM face_templates WHERE user_id = ?;
`, userID)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.FaceTemplate{}, store.ErrNotFound
	}
	return t, err
}

func (s *FaceTemplateStore) ListTemplates(ctx context.Context) ([]store.FaceTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, dims, embedding, captured_at_ms FROM face_templates ORDER BY user_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListTemplates: %w", err)
	}
	defer rows.Close()

	var out []store.FaceTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTemplates rows: %w", err)
	}
	return out, nil
}

func scanTemplate(r rowScanner) (store.FaceTemplate, error) {
	var (
		t          store.FaceTemplate
		dims       int
		blob       []byte
		capturedMs int64
	)
	if err := r.Scan(&t.UserID, &dims, &blob, &capturedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan template: %w", err)
	}
	emb, err := decodeEmbedding(blob, dims)
	if err != nil {
		return t, fmt.Errorf("template %s: %w", t.UserID, err)
	}
	t.Embedding = emb
	t.CapturedAt = fromMs(capturedMs)
	return t, nil
}

func encodeEmbedding(v []float32) []byte {
	b := make([]byte, 0, 4*len(v))
	for _, f := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}

func decodeEmbedding(b []byte, dims int) ([]float32, error) {
	if len(b) != 4*dims {
		return nil, fmt.Errorf("embedding blob is %d bytes, want %d", len(b), 4*dims)
	}
	out := make([]float32, dims)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}
