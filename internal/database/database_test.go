package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/killallgit/player-api/pkg/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		dbPath      string
		wantErr     bool
		checkResult func(*testing.T, *DB)
	}{
		{
			name:    "successful connection with in-memory database",
			dbPath:  ":memory:",
			wantErr: false,
			checkResult: func(t *testing.T, conn *DB) {
				assert.NotNil(t, conn)
				assert.NotNil(t, conn.DB)
			},
		},
		{
			name:    "successful connection with file database",
			dbPath:  filepath.Join(t.TempDir(), "test.db"),
			wantErr: false,
			checkResult: func(t *testing.T, conn *DB) {
				assert.NotNil(t, conn)
				assert.NotNil(t, conn.DB)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Initialize(tt.dbPath, false)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)

			if tt.checkResult != nil {
				tt.checkResult(t, conn)
			}

			if conn != nil {
				conn.Close()
			}
		})
	}
}

func TestDB_Close(t *testing.T) {
	conn, err := Initialize(":memory:", false)
	require.NoError(t, err)
	require.NotNil(t, conn)

	err = conn.Close()
	assert.NoError(t, err)

	err = conn.HealthCheck()
	assert.Error(t, err, "HealthCheck should fail after database is closed")
}

func TestDB_HealthCheck(t *testing.T) {
	tests := []struct {
		name      string
		setupConn func() (*DB, func())
		wantErr   bool
	}{
		{
			name: "healthy connection",
			setupConn: func() (*DB, func()) {
				conn, _ := Initialize(":memory:", false)
				return conn, func() {
					if conn != nil {
						conn.Close()
					}
				}
			},
			wantErr: false,
		},
		{
			name: "closed connection",
			setupConn: func() (*DB, func()) {
				conn, _ := Initialize(":memory:", false)
				conn.Close()
				return conn, func() {}
			},
			wantErr: true,
		},
		{
			name: "nil connection",
			setupConn: func() (*DB, func()) {
				return nil, func() {}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, cleanup := tt.setupConn()
			defer cleanup()

			err := conn.HealthCheck()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDB_AutoMigrate(t *testing.T) {
	type TestModel struct {
		gorm.Model
		Name string
	}

	conn, err := Initialize(":memory:", false)
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Close()

	err = conn.AutoMigrate(&TestModel{})
	assert.NoError(t, err)

	var count int64
	err = conn.DB.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='test_models'").Scan(&count).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDB_Transaction(t *testing.T) {
	type TestRecord struct {
		gorm.Model
		Value string
	}

	conn, err := Initialize(":memory:", false)
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Close()

	err = conn.AutoMigrate(&TestRecord{})
	require.NoError(t, err)

	t.Run("successful transaction", func(t *testing.T) {
		err := conn.DB.Transaction(func(tx *gorm.DB) error {
			for i := 0; i < 3; i++ {
				record := TestRecord{Value: "test"}
				if err := tx.Create(&record).Error; err != nil {
					return err
				}
			}
			return nil
		})

		assert.NoError(t, err)

		var count int64
		conn.DB.Model(&TestRecord{}).Count(&count)
		assert.Equal(t, int64(3), count)
	})

	t.Run("failed transaction rollback", func(t *testing.T) {
		var countBefore int64
		conn.DB.Model(&TestRecord{}).Count(&countBefore)

		err := conn.DB.Transaction(func(tx *gorm.DB) error {
			record := TestRecord{Value: "rollback-test"}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			return gorm.ErrInvalidTransaction
		})

		assert.Error(t, err)

		var countAfter int64
		conn.DB.Model(&TestRecord{}).Count(&countAfter)
		assert.Equal(t, countBefore, countAfter)
	})
}

type actionLogRow struct {
	gorm.Model
	RestoreKey string
}

func TestInitializeWithMigrations(t *testing.T) {
	viper.Reset()
	viper.Set("database.path", ":memory:")
	viper.Set("markers.database_path", ":memory:")
	viper.Set("server.port", 8080)

	handles, err := InitializeWithMigrations(&actionLogRow{})
	require.NoError(t, err)
	require.NotNil(t, handles)
	defer handles.Close()

	assert.NotNil(t, handles.Library)
	assert.NotNil(t, handles.ActionLog)

	var count int64
	err = handles.ActionLog.DB.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='action_log_rows'").Scan(&count).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInitializeLibrary_MissingPath(t *testing.T) {
	_, err := InitializeLibrary(&config.Config{})
	assert.Error(t, err)
}

func TestInitializeActionLog_MissingPath(t *testing.T) {
	_, err := InitializeActionLog(&config.Config{})
	assert.Error(t, err)
}

func TestHandles_Close(t *testing.T) {
	library, err := Initialize(":memory:", false)
	require.NoError(t, err)
	actionLog, err := Initialize(":memory:", false)
	require.NoError(t, err)

	handles := &Handles{Library: library, ActionLog: actionLog}
	assert.NoError(t, handles.Close())

	assert.Error(t, library.HealthCheck())
	assert.Error(t, actionLog.HealthCheck())
}

func TestDB_ConnectionPool(t *testing.T) {
	conn, err := Initialize(":memory:", false)
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Close()

	sqlDB, err := conn.DB.DB()
	require.NoError(t, err)

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	stats := sqlDB.Stats()
	assert.LessOrEqual(t, stats.Idle, 5)
	assert.GreaterOrEqual(t, stats.MaxOpenConnections, 10)
}
