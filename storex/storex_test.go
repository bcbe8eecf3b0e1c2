package storex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.eggybyte.com/scf/configx"
	scferrors "go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/runtimex"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/storex/internal"
	"go.eggybyte.com/scf/testingx"
	"go.eggybyte.com/scf/typex"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := OpenSQLite(dsn, testingx.NewMockLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// table plays the system that owns the property table.
type table struct {
	t  *testing.T
	db *gorm.DB
}

func createTable(t *testing.T, db *gorm.DB) *table {
	t.Helper()
	require.NoError(t, db.Table(DefaultTable).AutoMigrate(&internal.Row{}))
	return &table{t: t, db: db}
}

func (tb *table) put(key, value string) {
	tb.t.Helper()
	err := tb.db.Table(DefaultTable).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&internal.Row{Name: key, Value: value}).Error
	require.NoError(tb.t, err)
}

func (tb *table) remove(key string) {
	tb.t.Helper()
	require.NoError(tb.t, tb.db.Table(DefaultTable).Where("name = ?", key).Delete(&internal.Row{}).Error)
}

func newTableSource(t *testing.T, db *gorm.DB) (*TableSource, *table, *testingx.MockLogger) {
	t.Helper()
	tb := createTable(t, db)
	logger := testingx.NewMockLogger(t)
	src, err := NewTableSource(db, Options{Name: "db", Logger: logger})
	require.NoError(t, err)
	return src, tb, logger
}

func TestNewTableSource_Validation(t *testing.T) {
	_, err := NewTableSource(nil, Options{Name: "db"})
	testingx.AssertError(t, err, scferrors.CodeInvalidArgument)

	_, err = NewTableSource(openTestDB(t), Options{Name: ""})
	testingx.AssertError(t, err, scferrors.CodeInvalidArgument)

	src, err := NewTableSource(openTestDB(t), Options{Name: "db"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, src.Table())

	var _ sourcex.StringSource = src
	var _ runtimex.HealthChecker = src
}

func TestTableSource_Refresh(t *testing.T) {
	src, tb, logger := newTableSource(t, openTestDB(t))
	events := testingx.NewRecorder[sourcex.ChangeEvent]()
	require.NoError(t, src.AddChangeListener(events.Record))
	ctx := context.Background()

	require.NoError(t, src.Refresh(ctx))
	assert.Empty(t, src.Snapshot())
	assert.Equal(t, 0, events.Len(), "an empty table is no change")

	tb.put("timeout", "30")
	tb.put("name", "svc")
	require.NoError(t, src.Refresh(ctx))
	v, ok, err := src.GetStringValue("timeout")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "30", v)
	assert.Equal(t, 1, events.Len())

	// Rewriting a row with the same value leaves the content unchanged.
	tb.put("timeout", "30")
	require.NoError(t, src.Refresh(ctx))
	assert.Equal(t, 1, events.Len())

	tb.put("timeout", "60")
	tb.remove("name")
	require.NoError(t, src.Refresh(ctx))
	assert.Equal(t, map[string]string{"timeout": "60"}, src.Snapshot())
	assert.Equal(t, 2, events.Len())
	logger.AssertLogged("INFO", "table reloaded")
}

func TestTableSource_RefreshFailureKeepsSnapshot(t *testing.T) {
	db := openTestDB(t)
	src, tb, _ := newTableSource(t, db)
	ctx := context.Background()
	tb.put("a", "1")
	require.NoError(t, src.Refresh(ctx))

	require.NoError(t, db.Migrator().DropTable(DefaultTable))
	err := src.Refresh(ctx)
	testingx.AssertError(t, err, scferrors.CodeUnavailable)
	assert.Equal(t, map[string]string{"a": "1"}, src.Snapshot())
}

func TestTableSource_Watch(t *testing.T) {
	src, tb, _ := newTableSource(t, openTestDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go src.Watch(ctx, 5*time.Millisecond)

	tb.put("feature", "on")
	testingx.Eventually(t, 5*time.Second, func() bool {
		v, _, _ := src.GetStringValue("feature")
		return v == "on"
	}, "watch picks up external writes")
}

func TestTableSource_Check(t *testing.T) {
	db := openTestDB(t)
	src, _, _ := newTableSource(t, db)

	handler := runtimex.HealthHandler(src)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	testingx.AssertError(t, src.Check(context.Background()), scferrors.CodeUnavailable)
}

func TestTableSource_FeedsManager(t *testing.T) {
	src, tb, _ := newTableSource(t, openTestDB(t))
	ctx := context.Background()
	tb.put("pool.size", "8")
	require.NoError(t, src.Refresh(ctx))

	m, err := configx.NewManager(configx.ManagerConfig{
		Name:    "db",
		Sources: []configx.PrioritizedSource{{Priority: 1, Source: src}},
		Logger:  testingx.NewMockLogger(t),
	})
	require.NoError(t, err)

	p, err := configx.GetProperty(m, configx.MustPropertyConfig(configx.PropertySpec[string, int]{
		Key:             "pool.size",
		ValueConverters: []typex.Converter{typex.StringToInt},
	}))
	require.NoError(t, err)
	assert.Equal(t, 8, p.Value())

	tb.put("pool.size", "16")
	require.NoError(t, src.Refresh(ctx))
	assert.Equal(t, 16, p.Value(), "an inline manager applies the change before Refresh returns")
}
