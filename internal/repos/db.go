package repos

import (
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so that lexical order equals
// chronological order inside SQL comparisons.
const tsLayout = "2006-01-02T15:04:05.000000Z"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(tsLayout, s)
}

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer; one pooled connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed baseline catalog if DB is empty (categories/properties)
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	// Ensure users exist (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Users
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

-- Categories (forest; parent_id NULL for roots)
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  parent_id TEXT NULL REFERENCES categories(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories(parent_id);

-- Properties
CREATE TABLE IF NOT EXISTS properties(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','inactive')),
  created_at TEXT NOT NULL,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_properties_category ON properties(category_id, status);

-- Bookings: half-open windows [start_at, end_at)
CREATE TABLE IF NOT EXISTS bookings(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
  start_at TEXT NOT NULL,
  end_at TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','paid','canceled')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  CHECK (end_at > start_at)
);
CREATE INDEX IF NOT EXISTS idx_bookings_slot   ON bookings(property_id, start_at, end_at);
CREATE INDEX IF NOT EXISTS idx_bookings_user   ON bookings(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);

-- Payments
CREATE TABLE IF NOT EXISTS payments(
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
  provider TEXT NOT NULL,
  transaction_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','success','failed')),
  raw_response TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments(booking_id, provider, status);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_one_success ON payments(booking_id) WHERE status = 'success';
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo categories/properties")

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	tx.MustExec(`INSERT INTO categories(id,name,parent_id,created_at) VALUES
	  ('residential','Residential',NULL,'2024-01-01T00:00:00.000000Z'),
	  ('apartments','Apartments','residential','2024-01-01T00:00:01.000000Z'),
	  ('houses','Houses','residential','2024-01-01T00:00:02.000000Z'),
	  ('studios','Studios','apartments','2024-01-01T00:00:03.000000Z'),
	  ('commercial','Commercial',NULL,'2024-01-01T00:00:04.000000Z'),
	  ('offices','Offices','commercial','2024-01-01T00:00:05.000000Z')`)

	tx.MustExec(`INSERT INTO properties(id,category_id,name,location,price,status,created_at) VALUES
	  ('penthouse','apartments','Penthouse','City Centre','750000.00','active','2024-02-01T00:00:00.000000Z'),
	  ('studio-loft','studios','Studio Loft','Old Town','500000.00','active','2024-02-02T00:00:00.000000Z'),
	  ('family-house','houses','Family House','Suburbs','650000.00','active','2024-02-03T00:00:00.000000Z'),
	  ('old-villa','houses','Old Villa','Hillside','820000.00','inactive','2024-02-04T00:00:00.000000Z'),
	  ('city-office','offices','City Office','Business District','900000.00','active','2024-02-05T00:00:00.000000Z')`)

	return tx.Commit()
}

// seedUsers ensures two USERs and one ADMIN exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-alice", "alice@realestate.test", "Alice", "USER", "Passw0rd!"),
		mk("u-bob", "bob@realestate.test", "Bob", "USER", "Passw0rd!"),
		mk("u-admin", "admin@realestate.test", "Admin", "ADMIN", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}
