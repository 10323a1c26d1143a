package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
)

type fakeMigrator struct {
	upErr    error
	steps    []int
	migrated []uint
	forced   []int
	version  uint
	dirty    bool
	verErr   error
}

func (f *fakeMigrator) Up() error { return f.upErr }
func (f *fakeMigrator) Steps(n int) error { f.steps = append(f.steps, n); return nil }
func (f *fakeMigrator) Migrate(v uint) error { f.migrated = append(f.migrated, v); return nil }
func (f *fakeMigrator) Force(v int) error { f.forced = append(f.forced, v); return nil }
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.verErr }

func TestDatabaseURL(t *testing.T) {
	url := databaseURL(config.DatabaseConfig{User: "fit", Password: "pw", Host: "db", Port: "3306", Name: "fitsync"})
	assert.Equal(t, "mysql://fit:pw@tcp(db:3306)/fitsync?multiStatements=true", url)
}

func TestRun(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run(m, "up", nil), "no change is not an error")

	m.upErr = errors.New("boom")
	assert.Error(t, run(m, "up", nil))

	require.NoError(t, run(m, "down", nil))
	assert.Equal(t, []int{-1}, m.steps)

	require.NoError(t, run(m, "goto", []string{"3"}))
	assert.Equal(t, []uint{3}, m.migrated)

	require.NoError(t, run(m, "force", []string{"2"}))
	assert.Equal(t, []int{2}, m.forced)

	assert.Error(t, run(m, "goto", nil))
	assert.Error(t, run(m, "goto", []string{"x"}))

	m.verErr = migrate.ErrNilVersion
	require.NoError(t, run(m, "version", nil))

	assert.Error(t, run(m, "sideways", nil))
}
