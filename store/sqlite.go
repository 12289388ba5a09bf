package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// SqliteStore keeps records in a single SQLite database.
//
// Table:
//
//	users(id, username, secret)  PRIMARY KEY (id)
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		secret TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) scanOne(query string, arg string) (*User, error) {
	var u User
	err := s.db.QueryRow(query, arg).Scan(&u.ID, &u.Username, &u.Secret)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SqliteStore) Get(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOne("SELECT id, username, secret FROM users WHERE id = ?", id)
}

func (s *SqliteStore) GetByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOne(
		"SELECT id, username, secret FROM users WHERE username = ? LIMIT 1",
		username,
	)
}

func (s *SqliteStore) Create(username, secret string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: uuid.NewString(), Username: username, Secret: secret}
	_, err := s.db.Exec(
		"INSERT INTO users (id, username, secret) VALUES (?, ?, ?)",
		u.ID, u.Username, u.Secret,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SqliteStore) Update(id string, patch Patch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.scanOne("SELECT id, username, secret FROM users WHERE id = ?", id)
	if err != nil || u == nil {
		return nil, err
	}
	patch.apply(u)
	_, err = s.db.Exec(
		"UPDATE users SET username = ?, secret = ? WHERE id = ?",
		u.Username, u.Secret, u.ID,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SqliteStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SqliteStore) List() ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT id, username, secret FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Secret); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
