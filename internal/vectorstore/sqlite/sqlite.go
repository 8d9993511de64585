package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
	"ragqa/internal/vectorstore"
)

// Storage keeps records in a SQLite table and searches them by brute-force
// cosine similarity in insertion (seq) order.
type Storage struct {
	db        *sqlx.DB
	dimension int
}

type row struct {
	Seq    int64  `db:"seq"`
	TextID string `db:"text_id"`
	Vector []byte `db:"vector"`
	Text   string `db:"original_text"`
}

// Open connects to the database at path and creates the embeddings table if needed.
func Open(ctx context.Context, path string, dimension int) (*Storage, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite %s: %w", path, err)
	}
	// go-sqlite3 connections do not share in-memory databases
	db.SetMaxOpenConns(1)
	s := NewWithDB(db, dimension)
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing connection without touching the schema.
func NewWithDB(db *sqlx.DB, dimension int) *Storage {
	return &Storage{db: db, dimension: dimension}
}

func (s *Storage) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS embeddings (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		text_id TEXT NOT NULL,
		vector BLOB NOT NULL,
		original_text TEXT NOT NULL
	)`)
	return err
}

func (s *Storage) Add(ctx context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records, s.dimension); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (text_id, vector, original_text) VALUES (?, ?, ?)`,
			r.ID, encodeVector(r.Vector), r.Text); err != nil {
			return fmt.Errorf("insert %q: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if err := vectorstore.ValidateQuery(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, `SELECT seq, text_id, vector, original_text FROM embeddings ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(rows))
	for _, r := range rows {
		v, err := decodeVector(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.TextID, err)
		}
		results = append(results, domain.SearchResult{ID: r.TextID, Text: r.Text, Score: vecmath.Cosine(v, vector)})
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`)
	return err
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM embeddings`); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

func (s *Storage) Sample(ctx context.Context, n int) ([]domain.Record, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT seq, text_id, vector, original_text FROM embeddings ORDER BY seq LIMIT ?`, max(n, 0)); err != nil {
		return nil, fmt.Errorf("sample embeddings: %w", err)
	}
	out := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		v, err := decodeVector(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.TextID, err)
		}
		out = append(out, domain.Record{ID: r.TextID, Vector: v, Text: r.Text})
	}
	return out, nil
}

// BuildIndex indexes text_id and refreshes planner statistics.
func (s *Storage) BuildIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_embeddings_text_id ON embeddings(text_id)`); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `ANALYZE embeddings`); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", domain.ErrInvalidRecord, len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
