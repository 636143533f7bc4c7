package store

import (
	"database/sql"
	"errors"
	"time"
)

// Analysis is one answer returned for a prompt about a snapshot.
type Analysis struct {
	ID        string        `json:"id"`
	DrawingID string        `json:"drawingId,omitempty"`
	Prompt    string        `json:"prompt"`
	Answer    string        `json:"answer"`
	ImageMD5  string        `json:"imageMd5"`
	Duration  time.Duration `json:"duration"`
	Cached    bool          `json:"cached"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AnalysisRepository stores analysis results.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository for this store.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

// Create inserts a.
func (r *AnalysisRepository) Create(a *Analysis) error {
	if a.ID == "" {
		return errors.New("analysis id is required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	var drawingID any
	if a.DrawingID != "" {
		drawingID = a.DrawingID
	}

	_, err := r.db.Exec(
		`INSERT INTO analyses (id, drawing_id, prompt, answer, image_md5, duration_ms, cached, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, drawingID, a.Prompt, a.Answer, a.ImageMD5, a.Duration.Milliseconds(), a.Cached, a.CreatedAt,
	)
	return err
}

// List returns up to limit analyses, newest first. A non-positive limit
// returns all of them.
func (r *AnalysisRepository) List(limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, COALESCE(drawing_id, ''), prompt, answer, image_md5, duration_ms, cached, created_at
		 FROM analyses ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a := &Analysis{}
		var ms int64
		if err := rows.Scan(&a.ID, &a.DrawingID, &a.Prompt, &a.Answer, &a.ImageMD5, &ms, &a.Cached, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, a)
	}

	return out, rows.Err()
}
