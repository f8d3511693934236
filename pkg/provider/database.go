package provider

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Database persists identities and outstanding refresh tokens in SQLite.
type Database struct {
	db *sql.DB
}

func OpenDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init database schema: couldn't enable foreign keys: %v", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init database: %v", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func initSchema(db *sql.DB) error {
	if err := initTable(db, "identity", `
		CREATE TABLE IF NOT EXISTS identity (
			id          INTEGER PRIMARY KEY,
			handle      TEXT UNIQUE,
			secret      BLOB,
			database    TEXT
		);`,
	); err != nil {
		return err
	}

	if err := initTable(db, "refresh", `
		CREATE TABLE IF NOT EXISTS refresh (
			id          INTEGER PRIMARY KEY,
			owner       INTEGER,
			jwt         TEXT UNIQUE,
			expiration  INTEGER,
			FOREIGN KEY (owner) REFERENCES identity (id) ON DELETE CASCADE
		);`,
	); err != nil {
		return err
	}

	return nil
}

func initTable(
	db *sql.DB,
	name string,
	sql string,
) error {
	if _, err := db.Exec(sql); err != nil {
		return fmt.Errorf("failed to init '%s' table schema: %v", name, err)
	}
	return nil
}

type identityRow struct {
	id       int64
	secret   []byte
	database string
}

func (d *Database) insertIdentity(
	handle string,
	secret []byte,
	database string,
) error {
	_, err := d.db.Exec(`
		INSERT INTO identity (handle, secret, database)
		VALUES (?1, ?2, ?3);`,
		handle,
		secret,
		database,
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into identity: %v", err)
	}
	return nil
}

func (d *Database) handleExists(handle string) (bool, error) {
	row := d.db.QueryRow(`
		SELECT COUNT(*)
		FROM identity
		WHERE handle=?1;`,
		handle,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("couldn't scan identity count: %v", err)
	}
	return count > 0, nil
}

// getIdentity returns sql.ErrNoRows for unknown handles.
func (d *Database) getIdentity(handle string) (*identityRow, error) {
	row := d.db.QueryRow(`
		SELECT id, secret, database
		FROM identity
		WHERE handle=?1;`,
		handle,
	)

	identity := &identityRow{}
	var database sql.NullString
	if err := row.Scan(&identity.id, &identity.secret, &database); err != nil {
		return nil, err
	}
	identity.database = database.String
	return identity, nil
}

func (d *Database) insertRefresh(
	handle string,
	jwt string,
	expiration time.Time,
) error {
	_, err := d.db.Exec(`
		INSERT INTO refresh (owner, jwt, expiration)
		SELECT i.id, ?1, ?2
		FROM identity i
		WHERE i.handle=?3;`,
		jwt,
		expiration.Unix(),
		handle,
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into refresh: %v", err)
	}
	return nil
}

// deleteRefresh reports whether the token was outstanding.
func (d *Database) deleteRefresh(jwt string) (bool, error) {
	result, err := d.db.Exec(`
		DELETE FROM refresh
		WHERE jwt=?1;`,
		jwt,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from refresh: %v", err)
	}
	return !resultsEmpty(result), nil
}

// purgeRefresh removes refresh tokens that expired before now.
func (d *Database) purgeRefresh(now time.Time) (int64, error) {
	result, err := d.db.Exec(`
		DELETE FROM refresh
		WHERE expiration <= ?1;`,
		now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't purge refresh: %v", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return count, nil
}

func (d *Database) countRefresh(handle string) (int, error) {
	row := d.db.QueryRow(`
		SELECT COUNT(*)
		FROM refresh r
		JOIN identity i ON r.owner=i.id
		WHERE i.handle=?1;`,
		handle,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("couldn't count refresh: %v", err)
	}
	return count, nil
}

func resultsEmpty(result sql.Result) bool {
	count, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return count == 0
}
