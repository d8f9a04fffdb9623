// Package store is the durable side of the entity caches: a purpose-built
// SQLite layer exposing exactly the queries the simulation needs, not a
// general database abstraction.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

// BodyRow mirrors one row of the bodies table.
type BodyRow struct {
	ID            uint32
	Type          uint8
	Coords        [3]float64
	RotatingSpeed float64
	GravityCenter uint32
}

// PlayerRow mirrors one row of the players table.
type PlayerRow struct {
	ID            uint32
	Nickname      string
	Coords        [3]float64
	Direction     [3]float64
	CurrentSystem uint32
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Single writer connection; the instance serializes access anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bodies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type INTEGER NOT NULL,
			coord_x REAL NOT NULL DEFAULT 0,
			coord_y REAL NOT NULL DEFAULT 0,
			coord_z REAL NOT NULL DEFAULT 0,
			rotating_speed REAL NOT NULL DEFAULT 0,
			gravity_center INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bodies_gravity_center ON bodies(gravity_center);`,
		`CREATE TABLE IF NOT EXISTS players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nickname TEXT NOT NULL,
			coord_x REAL NOT NULL DEFAULT 0,
			coord_y REAL NOT NULL DEFAULT 0,
			coord_z REAL NOT NULL DEFAULT 0,
			direction_x REAL NOT NULL DEFAULT 0,
			direction_y REAL NOT NULL DEFAULT 0,
			direction_z REAL NOT NULL DEFAULT 0,
			current_system INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_nickname ON players(nickname);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// InsertBody writes a new body and returns the storage-assigned id.
func (s *Store) InsertBody(r BodyRow) (uint32, error) {
	res, err := s.db.Exec(
		`INSERT INTO bodies(type, coord_x, coord_y, coord_z, rotating_speed, gravity_center)
		 VALUES(?,?,?,?,?,?)`,
		r.Type, r.Coords[0], r.Coords[1], r.Coords[2], r.RotatingSpeed, r.GravityCenter,
	)
	if err != nil {
		return 0, fmt.Errorf("insert body: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert body id: %w", err)
	}
	return uint32(id), nil
}

// InsertBodies writes rows in one multi-row INSERT and returns the id of
// the last row; the batch receives sequential trailing ids ending there.
func (s *Store) InsertBodies(rows []BodyRow) (uint32, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(rows)*6)
	)
	sb.WriteString(`INSERT INTO bodies(type, coord_x, coord_y, coord_z, rotating_speed, gravity_center) VALUES `)
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?)")
		args = append(args, r.Type, r.Coords[0], r.Coords[1], r.Coords[2], r.RotatingSpeed, r.GravityCenter)
	}
	res, err := s.db.Exec(sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert %d bodies: %w", len(rows), err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert bodies id: %w", err)
	}
	return uint32(last), nil
}

// UpsertBodies flushes rows keyed by id, inserting or replacing.
func (s *Store) UpsertBodies(rows []BodyRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert bodies: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT INTO bodies(id, type, coord_x, coord_y, coord_z, rotating_speed, gravity_center)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
			type=excluded.type,
			coord_x=excluded.coord_x,
			coord_y=excluded.coord_y,
			coord_z=excluded.coord_z,
			rotating_speed=excluded.rotating_speed,
			gravity_center=excluded.gravity_center`,
	)
	if err != nil {
		return fmt.Errorf("upsert bodies prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.ID, r.Type, r.Coords[0], r.Coords[1], r.Coords[2], r.RotatingSpeed, r.GravityCenter); err != nil {
			return fmt.Errorf("upsert body %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func scanBody(row interface{ Scan(...any) error }) (BodyRow, error) {
	var r BodyRow
	err := row.Scan(&r.ID, &r.Type, &r.Coords[0], &r.Coords[1], &r.Coords[2], &r.RotatingSpeed, &r.GravityCenter)
	return r, err
}

// BodyByID returns the stored body, or ErrNotFound.
func (s *Store) BodyByID(id uint32) (BodyRow, error) {
	row := s.db.QueryRow(
		`SELECT id, type, coord_x, coord_y, coord_z, rotating_speed, gravity_center
		 FROM bodies WHERE id=?`, id)
	r, err := scanBody(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BodyRow{}, fmt.Errorf("body %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return BodyRow{}, fmt.Errorf("select body %d: %w", id, err)
	}
	return r, nil
}

// BodiesByGravityCenter returns every body directly orbiting the given id,
// excluding the self-referencing root itself.
func (s *Store) BodiesByGravityCenter(id uint32) ([]BodyRow, error) {
	rows, err := s.db.Query(
		`SELECT id, type, coord_x, coord_y, coord_z, rotating_speed, gravity_center
		 FROM bodies WHERE gravity_center=? AND id<>?`, id, id)
	if err != nil {
		return nil, fmt.Errorf("select bodies orbiting %d: %w", id, err)
	}
	defer rows.Close()

	var out []BodyRow
	for rows.Next() {
		r, err := scanBody(rows)
		if err != nil {
			return nil, fmt.Errorf("scan body orbiting %d: %w", id, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertPlayer writes a new player row carrying only the nickname and
// returns the storage-assigned id.
func (s *Store) InsertPlayer(nickname string) (uint32, error) {
	res, err := s.db.Exec(`INSERT INTO players(nickname) VALUES(?)`, nickname)
	if err != nil {
		return 0, fmt.Errorf("insert player %q: %w", nickname, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert player id: %w", err)
	}
	return uint32(id), nil
}

// UpsertPlayer flushes one player keyed by id.
func (s *Store) UpsertPlayer(r PlayerRow) error {
	_, err := s.db.Exec(
		`INSERT INTO players(id, nickname, coord_x, coord_y, coord_z, direction_x, direction_y, direction_z, current_system)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
			nickname=excluded.nickname,
			coord_x=excluded.coord_x,
			coord_y=excluded.coord_y,
			coord_z=excluded.coord_z,
			direction_x=excluded.direction_x,
			direction_y=excluded.direction_y,
			direction_z=excluded.direction_z,
			current_system=excluded.current_system`,
		r.ID, r.Nickname,
		r.Coords[0], r.Coords[1], r.Coords[2],
		r.Direction[0], r.Direction[1], r.Direction[2],
		r.CurrentSystem,
	)
	if err != nil {
		return fmt.Errorf("upsert player %d: %w", r.ID, err)
	}
	return nil
}

// PlayerByNickname looks a player up by nickname (LIKE match, so lookups
// are case-insensitive the way SQLite defines it). The boolean reports
// whether a row exists.
func (s *Store) PlayerByNickname(nickname string) (PlayerRow, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, nickname, coord_x, coord_y, coord_z, direction_x, direction_y, direction_z, current_system
		 FROM players WHERE nickname LIKE ?`, nickname)
	var r PlayerRow
	err := row.Scan(&r.ID, &r.Nickname,
		&r.Coords[0], &r.Coords[1], &r.Coords[2],
		&r.Direction[0], &r.Direction[1], &r.Direction[2],
		&r.CurrentSystem)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerRow{}, false, nil
	}
	if err != nil {
		return PlayerRow{}, false, fmt.Errorf("select player %q: %w", nickname, err)
	}
	return r, true, nil
}
