// Package keystore is the employer's private database of blinding factors
// and salaries. Nothing in it ever reaches the ledger: losing a blinding
// factor makes every later proof for that employee impossible.
package keystore

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"math"
	"math/big"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/codec"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when no entry exists for an employee.
	ErrNotFound = errors.New("employee not in keystore")
	// ErrAlreadyExists is returned when inserting an employee twice.
	ErrAlreadyExists = errors.New("employee already in keystore")
)

// Entry is the private data behind one salary commitment.
type Entry struct {
	Company   uint64
	Employee  string
	Blinding  *big.Int
	Salary    uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a SQLite backed keystore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the keystore at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open keystore")
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect keystore")
	}
	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases from splitting per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err = db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "execute %q", pragma)
		}
	}
	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewBlinding draws a uniformly random scalar field element.
func NewBlinding() (*big.Int, error) {
	v, err := rand.Int(rand.Reader, codec.R)
	if err != nil {
		return nil, errors.Wrap(err, "generate blinding factor")
	}
	return v, nil
}

// Insert stores a new entry.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if e.Salary > math.MaxInt64 {
		return errors.Wrap(codec.ErrValueTooLarge, "salary")
	}
	blinding, err := encodeBlinding(e.Blinding)
	if err != nil {
		return err
	}
	now := s.now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blinding_factors (company_id, employee, blinding_factor, salary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(e.Company), e.Employee, blinding, int64(e.Salary), now, now)
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return errors.Wrapf(ErrAlreadyExists, "%d/%s", e.Company, e.Employee)
	}
	return errors.Wrap(err, "insert entry")
}

// Get returns the entry for employee of company.
func (s *Store) Get(ctx context.Context, company uint64, employee string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT company_id, employee, blinding_factor, salary, created_at, updated_at
		 FROM blinding_factors WHERE company_id = ? AND employee = ?`,
		int64(company), employee)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%d/%s", company, employee)
	}
	return e, err
}

// UpdateSalary changes the stored salary. The blinding factor is kept, so a
// fresh commitment must be computed and registered afterwards.
func (s *Store) UpdateSalary(ctx context.Context, company uint64, employee string, salary uint64) error {
	if salary > math.MaxInt64 {
		return errors.Wrap(codec.ErrValueTooLarge, "salary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE blinding_factors SET salary = ?, updated_at = ?
		 WHERE company_id = ? AND employee = ?`,
		int64(salary), s.now().Unix(), int64(company), employee)
	if err != nil {
		return errors.Wrap(err, "update salary")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%d/%s", company, employee)
	}
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, company uint64, employee string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM blinding_factors WHERE company_id = ? AND employee = ?`,
		int64(company), employee)
	if err != nil {
		return errors.Wrap(err, "delete entry")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "%d/%s", company, employee)
	}
	return nil
}

// List returns the entries of company ordered by employee.
func (s *Store) List(ctx context.Context, company uint64) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, employee, blinding_factor, salary, created_at, updated_at
		 FROM blinding_factors WHERE company_id = ? ORDER BY employee`,
		int64(company))
	if err != nil {
		return nil, errors.Wrap(err, "list entries")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                Entry
		company, salary  int64
		blinding         string
		created, updated int64
	)
	if err := row.Scan(&company, &e.Employee, &blinding, &salary, &created, &updated); err != nil {
		return nil, err
	}
	b, err := decodeBlinding(blinding)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt blinding factor for %s", e.Employee)
	}
	e.Company = uint64(company)
	e.Salary = uint64(salary)
	e.Blinding = b
	e.CreatedAt = time.Unix(created, 0)
	e.UpdatedAt = time.Unix(updated, 0)
	return &e, nil
}

// Blinding factors are stored as 64 lowercase hex characters of the 32-byte
// big-endian encoding.
func encodeBlinding(v *big.Int) (string, error) {
	e, err := codec.NewElement(v)
	if err != nil {
		return "", errors.Wrap(err, "blinding factor")
	}
	b := e.Bytes()
	return hex.EncodeToString(b[:]), nil
}

func decodeBlinding(s string) (*big.Int, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	e, err := codec.DecodeElement(b)
	if err != nil {
		return nil, err
	}
	return e.BigInt(), nil
}
