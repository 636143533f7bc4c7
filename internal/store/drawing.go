package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Point is a canvas pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one saved stroke.
type Stroke struct {
	ID        string  `json:"id"`
	Color     string  `json:"color"`
	LineWidth int     `json:"lineWidth"`
	Points    []Point `json:"points"`
}

// Drawing is a saved canvas. Strokes are in drawing order and are only
// populated by GetByID.
type Drawing struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	StrokeCount int       `json:"strokeCount"`
	Strokes     []Stroke  `json:"strokes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DrawingRepository provides CRUD operations for drawings.
type DrawingRepository struct {
	db *sql.DB
}

// Drawings returns the drawing repository for this store.
func (s *Store) Drawings() *DrawingRepository {
	return &DrawingRepository{db: s.db}
}

// Create inserts d with all its strokes and points in one transaction.
func (r *DrawingRepository) Create(d *Drawing) error {
	if d.ID == "" {
		return errors.New("drawing id is required")
	}
	d.CreatedAt = time.Now()
	d.StrokeCount = len(d.Strokes)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO drawings (id, name, width, height, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Width, d.Height, d.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert drawing: %w", err)
	}

	strokeStmt, err := tx.Prepare(
		`INSERT INTO strokes (id, drawing_id, sequence, color, line_width) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer strokeStmt.Close()

	pointStmt, err := tx.Prepare(
		`INSERT INTO stroke_points (stroke_id, sequence, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for i, st := range d.Strokes {
		if _, err := strokeStmt.Exec(st.ID, d.ID, i, st.Color, st.LineWidth); err != nil {
			return fmt.Errorf("insert stroke %d: %w", i, err)
		}
		for j, p := range st.Points {
			if _, err := pointStmt.Exec(st.ID, j, p.X, p.Y); err != nil {
				return fmt.Errorf("insert point %d of stroke %d: %w", j, i, err)
			}
		}
	}

	return tx.Commit()
}

// GetByID retrieves a drawing with its strokes.
func (r *DrawingRepository) GetByID(id string) (*Drawing, error) {
	d := &Drawing{}
	err := r.db.QueryRow(
		`SELECT d.id, d.name, d.width, d.height, d.created_at,
		        (SELECT COUNT(*) FROM strokes s WHERE s.drawing_id = d.id)
		 FROM drawings d WHERE d.id = ?`,
		id,
	).Scan(&d.ID, &d.Name, &d.Width, &d.Height, &d.CreatedAt, &d.StrokeCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	strokes, err := r.strokes(id)
	if err != nil {
		return nil, err
	}
	d.Strokes = strokes
	return d, nil
}

func (r *DrawingRepository) strokes(drawingID string) ([]Stroke, error) {
	rows, err := r.db.Query(
		`SELECT id, color, line_width FROM strokes WHERE drawing_id = ? ORDER BY sequence`,
		drawingID,
	)
	if err != nil {
		return nil, err
	}

	var strokes []Stroke
	index := make(map[string]int)
	for rows.Next() {
		var st Stroke
		if err := rows.Scan(&st.ID, &st.Color, &st.LineWidth); err != nil {
			rows.Close()
			return nil, err
		}
		index[st.ID] = len(strokes)
		strokes = append(strokes, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	points, err := r.db.Query(
		`SELECT p.stroke_id, p.x, p.y
		 FROM stroke_points p JOIN strokes s ON s.id = p.stroke_id
		 WHERE s.drawing_id = ?
		 ORDER BY s.sequence, p.sequence`,
		drawingID,
	)
	if err != nil {
		return nil, err
	}
	defer points.Close()

	for points.Next() {
		var strokeID string
		var p Point
		if err := points.Scan(&strokeID, &p.X, &p.Y); err != nil {
			return nil, err
		}
		if i, ok := index[strokeID]; ok {
			strokes[i].Points = append(strokes[i].Points, p)
		}
	}

	return strokes, points.Err()
}

// List retrieves all drawings, newest first, without their strokes.
func (r *DrawingRepository) List() ([]*Drawing, error) {
	rows, err := r.db.Query(
		`SELECT d.id, d.name, d.width, d.height, d.created_at,
		        (SELECT COUNT(*) FROM strokes s WHERE s.drawing_id = d.id)
		 FROM drawings d ORDER BY d.created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drawings []*Drawing
	for rows.Next() {
		d := &Drawing{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Width, &d.Height, &d.CreatedAt, &d.StrokeCount); err != nil {
			return nil, err
		}
		drawings = append(drawings, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return drawings, nil
}

// Delete removes a drawing and its strokes.
func (r *DrawingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM drawings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
