// Package internal contains the Kubernetes ConfigMap watcher implementation.
package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/utils"
)

// ConfigMapWatcher watches a ConfigMap for changes using Kubernetes client-go.
// onUpdate receives the full data of the ConfigMap, or an empty map once it
// is deleted.
type ConfigMapWatcher struct {
	name      string
	namespace string
	logger    log.Logger
	onUpdate  func(data map[string]string)
	client    kubernetes.Interface
	retry     utils.RetryConfig

	mu              sync.Mutex
	isRunning       bool
	stopCh          chan struct{}
	done            chan struct{}
	resourceVersion string
}

// NewConfigMapWatcher creates a new ConfigMap watcher.
func NewConfigMapWatcher(client kubernetes.Interface, name, namespace string, retry utils.RetryConfig, logger log.Logger, onUpdate func(data map[string]string)) *ConfigMapWatcher {
	return &ConfigMapWatcher{
		name:      name,
		namespace: namespace,
		logger:    logger,
		onUpdate:  onUpdate,
		client:    client,
		retry:     retry,
	}
}

// Load reads the ConfigMap once, retrying transient failures. A missing
// ConfigMap yields empty data.
func (w *ConfigMapWatcher) Load(ctx context.Context) (map[string]string, error) {
	var data map[string]string
	err := utils.Retry(ctx, w.retry, func() error {
		cm, err := w.client.CoreV1().ConfigMaps(w.namespace).Get(ctx, w.name, metav1.GetOptions{})
		switch {
		case apierrors.IsNotFound(err):
			w.logger.Warn("ConfigMap not found, starting empty",
				log.Str("name", w.name),
				log.Str("namespace", w.namespace))
			data = map[string]string{}
			return nil
		case err != nil:
			w.logger.Warn("failed to get ConfigMap", log.Str("error", err.Error()))
			return err
		}
		w.mu.Lock()
		w.resourceVersion = cm.ResourceVersion
		w.mu.Unlock()
		data = copyData(cm.Data)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.CodeUnavailable, "k8sx.Load", err, "get ConfigMap %s/%s", w.namespace, w.name)
	}
	return data, nil
}

// Start starts watching the ConfigMap.
func (w *ConfigMapWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("watcher is already running")
	}

	w.logger.Info("starting ConfigMap watcher",
		log.Str("name", w.name),
		log.Str("namespace", w.namespace))

	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.watch(ctx, w.stopCh, w.done)

	w.isRunning = true
	return nil
}

// Stop stops watching the ConfigMap and waits for the watch loop to exit or
// ctx to expire.
func (w *ConfigMapWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.logger.Info("stopping ConfigMap watcher",
		log.Str("name", w.name),
		log.Str("namespace", w.namespace))
	close(w.stopCh)
	done := w.done
	w.isRunning = false
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// watch performs the actual watching of the ConfigMap.
func (w *ConfigMapWatcher) watch(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		w.logger.Info("ConfigMap watcher stopped",
			log.Str("name", w.name),
			log.Str("namespace", w.namespace))
	}()

	for attempt := 0; ; {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		w.mu.Lock()
		rv := w.resourceVersion
		w.mu.Unlock()

		watcher, err := w.client.CoreV1().ConfigMaps(w.namespace).Watch(ctx, metav1.ListOptions{
			FieldSelector:   fmt.Sprintf("metadata.name=%s", w.name),
			ResourceVersion: rv,
		})
		if err != nil {
			w.logger.Error(err, "failed to create ConfigMap watcher",
				log.Str("name", w.name),
				log.Str("namespace", w.namespace))
			if !w.wait(ctx, stopCh, w.retry.Backoff(attempt)) {
				return
			}
			attempt++
			continue
		}
		attempt = 0

		if stopped := w.consume(ctx, stopCh, watcher); stopped {
			return
		}

		if !w.wait(ctx, stopCh, w.retry.BaseDelay) {
			return
		}
	}
}

// consume processes events until the watch ends. It reports true when the
// watcher was stopped.
func (w *ConfigMapWatcher) consume(ctx context.Context, stopCh <-chan struct{}, watcher watch.Interface) bool {
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-stopCh:
			return true
		case event, ok := <-watcher.ResultChan():
			if !ok {
				w.logger.Warn("ConfigMap watcher channel closed",
					log.Str("name", w.name),
					log.Str("namespace", w.namespace))
				return false
			}

			switch event.Type {
			case watch.Added, watch.Modified:
				if cm, ok := event.Object.(*corev1.ConfigMap); ok {
					w.logger.Debug("ConfigMap updated",
						log.Str("name", cm.Name),
						log.Str("namespace", cm.Namespace),
						log.Int("data_keys", len(cm.Data)))
					w.mu.Lock()
					w.resourceVersion = cm.ResourceVersion
					w.mu.Unlock()
					w.onUpdate(copyData(cm.Data))
				}
			case watch.Deleted:
				w.logger.Info("ConfigMap deleted",
					log.Str("name", w.name),
					log.Str("namespace", w.namespace))
				w.mu.Lock()
				w.resourceVersion = ""
				w.mu.Unlock()
				w.onUpdate(map[string]string{})
			case watch.Error:
				w.logger.Error(apierrors.FromObject(event.Object), "ConfigMap watcher error",
					log.Str("name", w.name),
					log.Str("namespace", w.namespace))
				w.mu.Lock()
				w.resourceVersion = ""
				w.mu.Unlock()
				return false
			}
		}
	}
}

func (w *ConfigMapWatcher) wait(ctx context.Context, stopCh <-chan struct{}, d time.Duration) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	return utils.Sleep(waitCtx, d) == nil
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
