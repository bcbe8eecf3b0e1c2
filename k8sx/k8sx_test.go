package k8sx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"go.eggybyte.com/scf/configx"
	scferrors "go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/utils"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/testingx"
	"go.eggybyte.com/scf/typex"
)

var fastRetry = utils.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

func configMap(data map[string]string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "app-config", Namespace: "prod", ResourceVersion: "1"},
		Data:       data,
	}
}

func newWatchedSource(t *testing.T, objects ...runtime.Object) (*ConfigMapSource, *watch.FakeWatcher, *testingx.MockLogger) {
	t.Helper()
	client := fake.NewClientset(objects...)
	fw := watch.NewFake()
	client.PrependWatchReactor("configmaps", k8stesting.DefaultWatchReactor(fw, nil))

	logger := testingx.NewMockLogger(t)
	src, err := NewConfigMapSource(client, Options{Name: "app-config", Namespace: "prod", Retry: fastRetry, Logger: logger})
	require.NoError(t, err)
	return src, fw, logger
}

func TestNewConfigMapSource_Validation(t *testing.T) {
	_, err := NewConfigMapSource(nil, Options{Name: "x"})
	testingx.AssertError(t, err, scferrors.CodeInvalidArgument)

	_, err = NewConfigMapSource(fake.NewClientset(), Options{Name: " "})
	testingx.AssertError(t, err, scferrors.CodeInvalidArgument)
}

func TestNewConfigMapSource_Defaults(t *testing.T) {
	src, err := NewConfigMapSource(fake.NewClientset(), Options{Name: "app-config"})
	require.NoError(t, err)
	assert.Equal(t, "configmap:default/app-config", src.Config().Name)
	assert.Empty(t, src.Snapshot())

	var _ sourcex.StringSource = src
}

func TestConfigMapSource_WatchLifecycle(t *testing.T) {
	src, fw, logger := newWatchedSource(t, configMap(map[string]string{"a": "1"}))
	events := testingx.NewRecorder[sourcex.ChangeEvent]()
	require.NoError(t, src.AddChangeListener(events.Record))

	ctx := context.Background()
	require.NoError(t, src.Start(ctx))
	t.Cleanup(func() { _ = src.Stop(context.Background()) })

	v, ok, err := src.GetStringValue("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 1, events.Len(), "initial load raises one change")

	fw.Modify(configMap(map[string]string{"a": "2", "b": "x"}))
	testingx.Eventually(t, 5*time.Second, func() bool {
		v, _, _ := src.GetStringValue("a")
		return v == "2"
	}, "modified data applied")
	assert.Equal(t, map[string]string{"a": "2", "b": "x"}, src.Snapshot())

	// Re-delivering identical data is not a change.
	fw.Modify(configMap(map[string]string{"a": "2", "b": "x"}))
	fw.Delete(configMap(nil))
	require.True(t, events.WaitFor(3, 5*time.Second), "deleted ConfigMap raises a change")
	assert.Empty(t, src.Snapshot())
	assert.Equal(t, 3, events.Len())

	require.NoError(t, src.Stop(ctx))
	logger.AssertLogged("INFO", "ConfigMap deleted")
}

func TestConfigMapSource_MissingStartsEmpty(t *testing.T) {
	src, fw, logger := newWatchedSource(t)
	require.NoError(t, src.Start(context.Background()))
	t.Cleanup(func() { _ = src.Stop(context.Background()) })

	assert.Empty(t, src.Snapshot())
	logger.AssertLogged("WARN", "ConfigMap not found, starting empty")

	fw.Add(configMap(map[string]string{"k": "v"}))
	testingx.Eventually(t, 5*time.Second, func() bool {
		_, ok, _ := src.GetStringValue("k")
		return ok
	}, "added ConfigMap is picked up")
}

func TestConfigMapSource_LoadFailure(t *testing.T) {
	client := fake.NewClientset()
	client.PrependReactor("get", "configmaps", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("apiserver down")
	})
	src, err := NewConfigMapSource(client, Options{Name: "app-config", Retry: fastRetry, Logger: testingx.NewMockLogger(t)})
	require.NoError(t, err)

	err = src.Start(context.Background())
	testingx.AssertError(t, err, scferrors.CodeUnavailable)
	require.NoError(t, src.Stop(context.Background()))
}

func TestConfigMapSource_FeedsManager(t *testing.T) {
	src, fw, _ := newWatchedSource(t, configMap(map[string]string{"timeout": "5"}))
	require.NoError(t, src.Start(context.Background()))
	t.Cleanup(func() { _ = src.Stop(context.Background()) })

	m, err := configx.NewManager(configx.ManagerConfig{
		Name:    "k8s",
		Sources: []configx.PrioritizedSource{{Priority: 1, Source: src}},
		Logger:  testingx.NewMockLogger(t),
	})
	require.NoError(t, err)

	p, err := configx.GetProperty(m, configx.MustPropertyConfig(configx.PropertySpec[string, int]{
		Key:             "timeout",
		DefaultValue:    1,
		ValueConverters: []typex.Converter{typex.StringToInt},
	}))
	require.NoError(t, err)
	assert.Equal(t, 5, p.Value())

	changes := testingx.NewRecorder[*configx.PropertyChangeEvent[string, int]]()
	require.NoError(t, p.AddChangeListener(changes.Record))

	fw.Modify(configMap(map[string]string{"timeout": "30"}))
	require.True(t, changes.WaitFor(1, 5*time.Second))
	assert.Equal(t, 30, p.Value())

	fw.Delete(configMap(nil))
	require.True(t, changes.WaitFor(2, 5*time.Second))
	assert.Equal(t, 1, p.Value(), "default applies once the ConfigMap is gone")
}
