// Package k8sx provides a configuration source backed by a Kubernetes ConfigMap.
//
// Overview:
//   - Responsibility: Load a ConfigMap, watch it and expose its data as a string source
//   - Key Types: Options for configuration, ConfigMapSource
//   - Concurrency Model: All methods are safe for concurrent use; the watch runs in one goroutine
//   - Error Semantics: Start fails when the initial load fails; watch errors are logged and retried
//   - Performance Notes: Lookups read an in-memory snapshot; only effective changes raise events
//
// Usage:
//
//	client, err := k8sx.NewInClusterClient()
//	src, err := k8sx.NewConfigMapSource(client, k8sx.Options{Name: "app-config", Logger: logger})
//	err = runtimex.Run(ctx, []runtimex.Service{src}, runtimex.Options{Logger: logger})
package k8sx

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/utils"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/k8sx/internal"
	"go.eggybyte.com/scf/sourcex"
)

// Options holds configuration for a ConfigMap source.
type Options struct {
	Name       string            `validate:"notblank"` // ConfigMap name
	Namespace  string            // Kubernetes namespace (default: "default")
	SourceName string            // Source name (default: "configmap:<namespace>/<name>")
	Retry      utils.RetryConfig `validate:"-"` // Load and re-watch policy (default: utils.DefaultRetryConfig())
	Logger     log.Logger        `validate:"-"` // Logger for watch operations
}

// ConfigMapSource exposes the data of one ConfigMap. A missing or deleted
// ConfigMap reads as empty. It implements sourcex.StringSource and
// runtimex.Service.
type ConfigMapSource struct {
	*sourcex.Base

	namespace string
	name      string
	watcher   *internal.ConfigMapWatcher

	mu     sync.RWMutex
	values map[string]string
}

// NewConfigMapSource creates a source for the ConfigMap described by opts.
// Data is loaded by Start.
func NewConfigMapSource(client kubernetes.Interface, opts Options) (*ConfigMapSource, error) {
	if client == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "kubernetes client is required")
	}
	if err := validate.Struct("k8sx.NewConfigMapSource", opts); err != nil {
		return nil, err
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.SourceName == "" {
		opts.SourceName = fmt.Sprintf("configmap:%s/%s", opts.Namespace, opts.Name)
	}
	if opts.Retry == (utils.RetryConfig{}) {
		opts.Retry = utils.DefaultRetryConfig()
	}
	cfg, err := sourcex.NewConfig(opts.SourceName)
	if err != nil {
		return nil, err
	}

	s := &ConfigMapSource{
		namespace: opts.Namespace,
		name:      opts.Name,
		values:    map[string]string{},
	}
	s.Base = sourcex.NewBase(s, cfg, opts.Logger, sourcex.StringLookup(s.GetStringValue))
	s.watcher = internal.NewConfigMapWatcher(client, opts.Name, opts.Namespace, opts.Retry, s.Logger(), s.update)
	return s, nil
}

// NewInClusterClient builds a clientset from the pod's service account.
func NewInClusterClient() (kubernetes.Interface, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "k8sx.NewInClusterClient", err)
	}
	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "k8sx.NewInClusterClient", err)
	}
	return client, nil
}

// Start loads the ConfigMap and begins watching it.
func (s *ConfigMapSource) Start(ctx context.Context) error {
	data, err := s.watcher.Load(ctx)
	if err != nil {
		return err
	}
	s.update(data)
	return s.watcher.Start(ctx)
}

// Stop ends the watch. The last loaded data stays readable.
func (s *ConfigMapSource) Stop(ctx context.Context) error {
	return s.watcher.Stop(ctx)
}

// GetStringValue returns the ConfigMap entry stored under key.
func (s *ConfigMapSource) GetStringValue(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Snapshot returns a copy of the current ConfigMap data.
func (s *ConfigMapSource) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *ConfigMapSource) update(data map[string]string) {
	s.mu.Lock()
	if maps.Equal(s.values, data) {
		s.mu.Unlock()
		return
	}
	s.values = data
	s.mu.Unlock()

	s.Logger().Info("ConfigMap data changed",
		log.Str("namespace", s.namespace),
		log.Str("name", s.name),
		log.Int("keys", len(data)))
	s.RaiseChange()
}
