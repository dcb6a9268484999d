package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmarket/internal/model"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever", Options{})
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestMigrateAndDropAll(t *testing.T) {
	gormDB, err := Open("sqlite", ":memory:", Options{MaxOpenConns: 1})
	require.NoError(t, err)

	require.NoError(t, Migrate(gormDB))
	for _, table := range []interface{}{&model.User{}, &model.Project{}, &model.Task{}, &model.Payment{}, &model.TaskEvent{}} {
		assert.True(t, gormDB.Migrator().HasTable(table))
	}
	assert.True(t, gormDB.Migrator().HasColumn(&model.Task{}, "assigned_developer"))

	require.NoError(t, DropAll(gormDB))
	assert.False(t, gormDB.Migrator().HasTable(&model.Task{}))
}
