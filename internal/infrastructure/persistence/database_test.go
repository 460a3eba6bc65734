package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabase_Ping(t *testing.T) {
	gormDB, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	db := &Database{DB: gormDB}

	mock.ExpectPing()

	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	gormDB, mock, _ := newMockGormDB(t)
	db := &Database{DB: gormDB}

	mock.ExpectClose()

	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_PingFailure(t *testing.T) {
	gormDB, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	db := &Database{DB: gormDB}

	mock.ExpectPing().WillReturnError(assert.AnError)

	err := db.Ping()
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "ping database")
}

func TestGormConfig(t *testing.T) {
	cfg := GormConfig(nil)
	assert.NotNil(t, cfg.Logger)
	assert.True(t, cfg.TranslateError)
	assert.True(t, cfg.SkipDefaultTransaction)
	assert.False(t, cfg.PrepareStmt)
	assert.Equal(t, time.UTC, cfg.NowFunc().Location())
}

func TestAutoMigrate_CreatesMarketplaceTables(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{
		"merchants", "merchant_platform_connections", "categories", "products",
		"orders", "webhook_events", "click_tracking", "trending_logs",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
