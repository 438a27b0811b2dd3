package store

import (
	"bytes"
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/chazu/railyard/pkg/errors"
	"github.com/chazu/railyard/pkg/layout"
	"github.com/chazu/railyard/pkg/logger"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Record summarises a saved layout. TotalLengthM sums the document's graph
// edges, so every switch route counts.
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	// Number of saves under this name, starting at 1.
	Version      int       `json:"version" yaml:"version"`
	PieceCount   int       `json:"pieceCount" yaml:"piece_count"`
	TotalLengthM float64   `json:"totalLengthM" yaml:"total_length_m"`
	CreatedAt    time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Store reads and writes layout documents.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
	now func() time.Time
}

// New wraps an open, migrated database.
func New(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{
		db:  db,
		log: logger.Named(log, "store"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

const recordColumns = "id, name, version, piece_count, total_length_m, created_at, updated_at"

// Save stores doc under name. Saving over an existing name replaces its
// document, keeps its id and bumps its version.
func (s *Store) Save(ctx context.Context, name string, doc layout.Document) (Record, error) {
	if name == "" {
		return Record{}, errors.WithHint(errors.Wrap(errors.ErrInvalidArgument, "layout name is empty"),
			"pass a name such as \"yard\"")
	}
	var buf bytes.Buffer
	if err := layout.Encode(&buf, doc); err != nil {
		return Record{}, errors.Wrapf(err, "encode layout %q", name)
	}
	total := lo.SumBy(doc.GraphEdges, func(e layout.EdgeDoc) float64 { return e.LengthM })
	now := s.now().UTC().Format(timeFormat)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO layouts (id, name, version, piece_count, total_length_m, document, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = layouts.version + 1,
			piece_count = excluded.piece_count,
			total_length_m = excluded.total_length_m,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		uuid.NewString(), name, len(doc.Pieces), total, buf.String(), now, now)
	if err != nil {
		return Record{}, errors.Wrapf(err, "save layout %q", name)
	}

	rec, err := s.Get(ctx, name)
	if err != nil {
		return Record{}, err
	}
	s.log.Infow("saved layout", logger.FieldLayoutID, rec.ID, "name", name, logger.FieldCount, rec.PieceCount)
	return rec, nil
}

// SaveLayout exports l and saves it under name.
func (s *Store) SaveLayout(ctx context.Context, name string, l *layout.Layout) (Record, error) {
	return s.Save(ctx, name, l.Export())
}

// Get returns the record for an id or a name.
func (s *Store) Get(ctx context.Context, ref string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM layouts WHERE id = ? OR name = ?", ref, ref)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.WrapNotFound(err, "layout "+ref)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "get layout %q", ref)
	}
	return rec, nil
}

// Load returns the document saved under an id or a name.
func (s *Store) Load(ctx context.Context, ref string) (layout.Document, Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+", document FROM layouts WHERE id = ? OR name = ?", ref, ref)
	var body string
	rec, err := scanRecord(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return layout.Document{}, Record{}, errors.WrapNotFound(err, "layout "+ref)
	}
	if err != nil {
		return layout.Document{}, Record{}, errors.Wrapf(err, "load layout %q", ref)
	}
	doc, err := layout.Decode(bytes.NewReader([]byte(body)))
	if err != nil {
		return layout.Document{}, Record{}, errors.Wrapf(err, "layout %q", ref)
	}
	s.log.Debugw("loaded layout", logger.FieldLayoutID, rec.ID, logger.FieldCount, rec.PieceCount)
	return doc, rec, nil
}

// LoadInto imports the saved document into l.
func (s *Store) LoadInto(ctx context.Context, ref string, l *layout.Layout) (layout.LoadReport, error) {
	doc, _, err := s.Load(ctx, ref)
	if err != nil {
		return layout.LoadReport{}, err
	}
	return l.Import(doc)
}

// List returns every saved layout, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM layouts ORDER BY updated_at DESC, name")
	if err != nil {
		return nil, errors.Wrap(err, "list layouts")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan layout")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "list layouts")
}

// Delete removes a saved layout by id or name.
func (s *Store) Delete(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM layouts WHERE id = ? OR name = ?", ref, ref)
	if err != nil {
		return errors.Wrapf(err, "delete layout %q", ref)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete layout %q", ref)
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "layout %s", ref)
	}
	s.log.Infow("deleted layout", "ref", ref)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, extra ...any) (Record, error) {
	var (
		rec              Record
		created, updated string
	)
	dest := append([]any{&rec.ID, &rec.Name, &rec.Version, &rec.PieceCount, &rec.TotalLengthM, &created, &updated}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Record{}, err
	}
	var err error
	if rec.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return Record{}, errors.Wrapf(err, "created_at of %s", rec.ID)
	}
	if rec.UpdatedAt, err = time.Parse(timeFormat, updated); err != nil {
		return Record{}, errors.Wrapf(err, "updated_at of %s", rec.ID)
	}
	return rec, nil
}
