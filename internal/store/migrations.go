package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Drawings table - one saved canvas
		`CREATE TABLE IF NOT EXISTS drawings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Strokes table - strokes of a drawing in drawing order
		`CREATE TABLE IF NOT EXISTS strokes (
			id TEXT PRIMARY KEY,
			drawing_id TEXT NOT NULL REFERENCES drawings(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			color TEXT NOT NULL,
			line_width INTEGER NOT NULL
		)`,

		// Stroke points table - canvas pixel coordinates of each stroke
		`CREATE TABLE IF NOT EXISTS stroke_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stroke_id TEXT NOT NULL REFERENCES strokes(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL
		)`,

		// Analyses table - answers returned for a prompt and snapshot
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			drawing_id TEXT REFERENCES drawings(id) ON DELETE SET NULL,
			prompt TEXT NOT NULL,
			answer TEXT NOT NULL,
			image_md5 TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			cached INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_strokes_drawing_id ON strokes(drawing_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stroke_points_stroke_id ON stroke_points(stroke_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
