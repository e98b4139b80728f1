package sqlsource

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/medvec/source"
	"github.com/viant/sqlite-vec/engine"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newPatientsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := engine.Open(filepath.Join(t.TempDir(), "patients.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE Patients (
		PatientId INTEGER PRIMARY KEY,
		FullName TEXT,
		IdentificationNumber TEXT,
		BirthDate TEXT,
		Phone TEXT,
		Email TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO Patients(FullName, IdentificationNumber, BirthDate, Phone, Email) VALUES
		('Maria Lopez', '1002003001', '1980-03-16', '555-0101', 'maria@example.com'),
		('Carlos Ruiz', '1002003002', '1990-03-15', NULL, 'carlos@example.com'),
		('Ana Torres', NULL, NULL, '555-0103', NULL)`)
	require.NoError(t, err)
	return db
}

func TestReader_ReadAll(t *testing.T) {
	db := newPatientsDB(t)
	r, err := New(db, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	var _ source.Reader = r

	got, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Patient Ana Torres, contact phone 555-0103.",
		"Patient Carlos Ruiz with identification number 1002003002, 35 years old, born on March 15, 1990, email address carlos@example.com.",
		"Patient Maria Lopez with identification number 1002003001, 44 years old, born on March 16, 1980, contact phone 555-0101, email address maria@example.com.",
	}, got)

	n, err := r.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, r.Ping(context.Background()))
}

func TestReader_LimitAndSearch(t *testing.T) {
	db := newPatientsDB(t)
	r, err := New(db, WithLimit(2), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	assert.Equal(t, "SELECT FullName, IdentificationNumber, BirthDate, Phone, Email FROM Patients ORDER BY FullName LIMIT 2", r.listSQL())
	got, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "Ana Torres")
	assert.Contains(t, got[1], "Carlos Ruiz")

	unlimited, err := New(db)
	require.NoError(t, err)
	assert.NotContains(t, unlimited.listSQL(), "LIMIT")

	patients, err := r.SearchByName(context.Background(), "Ruiz")
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "1002003002", patients[0].IdentificationNumber)
	assert.Empty(t, patients[0].Phone)
}

func TestReader_Errors(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	db := newPatientsDB(t)
	_, err = New(db, WithTable("Patients; DROP TABLE Patients"))
	assert.Error(t, err)

	r, err := New(db, WithTable("Missing"))
	require.NoError(t, err)
	_, err = r.ReadAll(context.Background())
	assert.Error(t, err)
}

func TestPatient_Describe(t *testing.T) {
	p := Patient{}
	assert.Equal(t, "Patient Name not available.", p.Describe(fixedNow))

	birth := time.Date(2000, 2, 29, 0, 0, 0, 0, time.UTC)
	p = Patient{FullName: "Leap Day", BirthDate: &birth}
	age, ok := p.Age(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, 24, age)
	assert.Equal(t, "Patient Leap Day, 25 years old, born on February 29, 2000.", p.Describe(fixedNow))
}

func TestToDate(t *testing.T) {
	d, err := toDate([]byte("1985-07-01"))
	require.NoError(t, err)
	assert.Equal(t, 1985, d.Year())
	d, err = toDate(nil)
	require.NoError(t, err)
	assert.Nil(t, d)
	_, err = toDate("01/07/1985")
	assert.Error(t, err)
	_, err = toDate(42)
	assert.Error(t, err)
}

func TestDetectDriver(t *testing.T) {
	for dsn, want := range map[string]string{
		"postgres://u:p@h/db":           "postgres",
		"user:pass@tcp(localhost)/db":   "mysql",
		"bigquery://project/dataset":    "bigquery",
		"/var/data/patients.sqlite":     "sqlite",
		"file:patients.db?cache=shared": "sqlite",
	} {
		got, ok := DetectDriver(dsn)
		assert.True(t, ok, dsn)
		assert.Equal(t, want, got, dsn)
	}
	_, ok := DetectDriver("unknown")
	assert.False(t, ok)
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "src.sqlite"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE Patients (FullName TEXT)`)
	assert.Error(t, err, "source connections are read only")
	require.NoError(t, db.Close())
	_, err = Open(context.Background(), "", "nothing-detectable")
	assert.Error(t, err)
}
