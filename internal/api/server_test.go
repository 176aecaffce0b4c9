package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/killallgit/player-api/internal/database"
	"github.com/killallgit/player-api/internal/models"
	"github.com/killallgit/player-api/internal/service"
	"github.com/killallgit/player-api/internal/services/actionlog"
	"github.com/killallgit/player-api/pkg/config"
)

type seedSectionRow struct {
	ID   uint `gorm:"column:id;primaryKey"`
	Name string
	Type string
}

func (seedSectionRow) TableName() string { return "library_sections" }

type seedItemRow struct {
	ID        uint `gorm:"column:id;primaryKey"`
	Type      string
	Title     string
	ParentID  *uint `gorm:"column:parent_id"`
	SectionID uint  `gorm:"column:section_id"`
	Duration  int64
}

func (seedItemRow) TableName() string { return "library_items" }

type seedMarkerRow struct {
	ID            uint  `gorm:"column:id;primaryKey"`
	ParentID      uint  `gorm:"column:parent_id;index"`
	Start         int64 `gorm:"column:start"`
	End           int64 `gorm:"column:end"`
	Index         int   `gorm:"column:sort_index"`
	Type          string
	Final         bool
	CreatedByUser bool      `gorm:"column:created_by_user"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	ModifiedAt    time.Time `gorm:"column:modified_at"`
}

func (seedMarkerRow) TableName() string { return "library_markers" }

func newTestServer(t *testing.T) (*Server, uint) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	library, err := database.Initialize(filepath.Join(dir, "library.db"), false)
	require.NoError(t, err)
	require.NoError(t, library.DB.AutoMigrate(&seedSectionRow{}, &seedItemRow{}, &seedMarkerRow{}))

	actionLogDB, err := database.Initialize(filepath.Join(dir, "actions.db"), false)
	require.NoError(t, err)
	require.NoError(t, actionLogDB.AutoMigrate(actionlog.Models()...))

	section := seedSectionRow{Name: "TV Shows", Type: string(models.ItemSection)}
	require.NoError(t, library.DB.Create(&section).Error)
	episode := seedItemRow{Type: string(models.ItemEpisode), Title: "Episode 1", SectionID: section.ID, Duration: 600000}
	require.NoError(t, library.DB.Create(&episode).Error)

	cfg := &config.Config{}
	cfg.Database.Path = filepath.Join(dir, "library.db")
	cfg.Markers.DatabasePath = filepath.Join(dir, "actions.db")
	cfg.Markers.BackupActions = true
	cfg.Markers.ExtendedStats = true
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Security.EnableCORS = true

	svc, err := service.NewWithHandles(cfg, &database.Handles{Library: library, ActionLog: actionLogDB})
	require.NoError(t, err)
	return NewServer(svc, cfg), episode.ID
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestServer_VersionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "marker-service")
}

func TestServer_NotFoundHandler(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_CORSHeaders(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/markers/sections", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_AddMarker(t *testing.T) {
	server, episodeID := newTestServer(t)

	body := `{"metadataId":"` + itoa(episodeID) + `","start":"0","end":"30000","type":"intro"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/markers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"start":0`)
}

func TestServer_AddMarker_MissingField(t *testing.T) {
	server, episodeID := newTestServer(t)

	body := `{"metadataId":"` + itoa(episodeID) + `","start":"0","type":"intro"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/markers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_GetSections(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/markers/sections", nil)
	rr := httptest.NewRecorder()
	server.Engine().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
