package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VEEP09/xc-test-apim/internal/models"
)

func TestConnect(t *testing.T) {
	// Test with memory DB
	db, err := Connect("file::memory:?cache=shared")
	assert.NoError(t, err)
	assert.NotNil(t, db)

	// Test with file DB
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	db, err = Connect(dbPath)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&models.SyncIncident{}))
	assert.FileExists(t, dbPath)
}

func TestOpenTestDB(t *testing.T) {
	db := OpenTestDB(t)
	require.NoError(t, db.Create(&models.SyncIncident{UUID: "u-1", Kind: models.IncidentDeleteOrphan}).Error)

	var count int64
	require.NoError(t, db.Model(&models.SyncIncident{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
