package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go.eggybyte.com/scf/configx"
	"go.eggybyte.com/scf/storex"
	"go.eggybyte.com/scf/testingx"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGet_SetFlag(t *testing.T) {
	out, err := execute(t, "get", "port", "--set", "port=8080", "--type", "int")
	require.NoError(t, err)
	assert.Equal(t, "port=8080\n", out)
}

func TestGet_PriorityAcrossFiles(t *testing.T) {
	props := writeFile(t, "app.properties", "timeout=5s\n")
	doc := writeFile(t, "app.yaml", "timeout: 10s\nretries: 3\n")

	out, err := execute(t, "get", "timeout", "retries", "--properties", props, "--yaml", doc, "-o", "json")
	require.NoError(t, err)

	var views []propertyView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "5s", views[0].Value)
	assert.Equal(t, props, views[0].Source)
	assert.Equal(t, "3", views[1].Value)
	assert.Equal(t, doc, views[1].Source)
}

func TestGet_DefaultAndRequired(t *testing.T) {
	out, err := execute(t, "get", "missing", "--type", "duration", "--default", "1m30s")
	require.NoError(t, err)
	assert.Equal(t, "missing=1m30s\n", out)

	_, err = execute(t, "get", "missing", "--required")
	require.Error(t, err)
	assert.True(t, configx.IsRequiredMissing(err), "error = %v", err)

	_, err = execute(t, "get", "missing", "--type", "int", "--default", "many")
	require.Error(t, err)
}

func TestGet_InvalidFlags(t *testing.T) {
	_, err := execute(t, "get", "k", "--type", "complex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")

	_, err = execute(t, "get", "k", "-o", "xml")
	require.Error(t, err)

	_, err = execute(t, "get")
	require.Error(t, err)
}

func TestGet_Cascade(t *testing.T) {
	props := writeFile(t, "app.properties", "timeout=1\ntimeout.prod=2\ntimeout.prod.eu=3\n")

	out, err := execute(t, "get", "timeout", "--properties", props, "--cascade-factor", "prod,eu", "--type", "int")
	require.NoError(t, err)
	assert.Equal(t, "timeout=3\n", out)

	out, err = execute(t, "get", "timeout", "--properties", props, "--cascade-factor", "prod", "--cascade-factor", "us", "--type", "int")
	require.NoError(t, err)
	assert.Equal(t, "timeout=2\n", out)
}

func TestGet_CollectionsAsYAML(t *testing.T) {
	out, err := execute(t, "get", "hosts", "labels",
		"--set", "hosts=a, b ,c",
		"--set", "labels=zone:eu,tier:web",
		"--type", "list", "-o", "yaml")
	// --type applies to both keys; labels parses as a list too.
	require.NoError(t, err)

	var views []propertyView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, []any{"a", "b", "c"}, views[0].Value)
	assert.Equal(t, "flags", views[0].Source)

	out, err = execute(t, "get", "labels", "--set", "labels=zone:eu,tier:web", "--type", "map")
	require.NoError(t, err)
	assert.Equal(t, "labels=tier:web,zone:eu\n", out)
}

func TestGet_TableSource(t *testing.T) {
	dsn := "file:cli_get?mode=memory&cache=shared"
	db, err := storex.OpenSQLite(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, db.Exec("CREATE TABLE "+storex.DefaultTable+" (name TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at DATETIME)").Error)
	require.NoError(t, db.Exec("INSERT INTO "+storex.DefaultTable+" (name, value) VALUES (?, ?)", "feature.enabled", "true").Error)

	out, err := execute(t, "get", "feature.enabled", "--db", dsn, "--breaker", "--type", "bool", "-o", "json")
	require.NoError(t, err)

	var views []propertyView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, true, views[0].Value)
	assert.Equal(t, "db:"+storex.DefaultTable, views[0].Source)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "scf version "+Version))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_PrintsChanges(t *testing.T) {
	path := writeFile(t, "app.properties", "retries=3\n")
	global := &globalOptions{
		logLevel:  "error",
		logFormat: "logfmt",
		stack: stackOptions{
			properties:       []string{path},
			cascadeSeparator: ".",
			pollInterval:     10 * time.Millisecond,
		},
	}
	opts := &watchOptions{property: propertyOptions{valueType: "int"}, workers: 2}

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, out, io.Discard, global, opts, []string{"retries"}) }()

	testingx.Eventually(t, 5*time.Second, func() bool {
		return strings.Contains(out.String(), "retries=3 (source="+path+")")
	}, "initial value printed")

	require.NoError(t, os.WriteFile(path, []byte("retries=5\n"), 0o600))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	testingx.Eventually(t, 5*time.Second, func() bool {
		return strings.Contains(out.String(), "retries changed: 3 -> 5")
	}, "change printed")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
