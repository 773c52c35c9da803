// control/adapter.go
// Author: momentics <momentics@gmail.com>
//
// Combined control surface: dynamic config, metrics, and debug probes in
// one handle shared by the stream reader and writer.

package control

// Adapter bundles a ConfigStore, MetricsRegistry, and DebugProbes behind a
// single control handle. The reader and writer each own one, publish their
// runtime counters through it, and expose it to callers for inspection and
// hot-reconfiguration.
type Adapter struct {
	config  *ConfigStore
	metrics *MetricsRegistry
	debug   *DebugProbes
}

// NewAdapter builds an Adapter with platform probes pre-registered.
func NewAdapter() *Adapter {
	a := &Adapter{
		config:  NewConfigStore(),
		metrics: NewMetricsRegistry(),
		debug:   NewDebugProbes(),
	}
	RegisterPlatformProbes(a.debug)
	return a
}

// GetConfig returns a snapshot of the dynamic configuration.
func (a *Adapter) GetConfig() map[string]any {
	return a.config.GetSnapshot()
}

// SetConfig merges cfg into the dynamic configuration and notifies reload
// listeners.
func (a *Adapter) SetConfig(cfg map[string]any) {
	a.config.SetConfig(cfg)
}

// OnReload registers fn to run whenever SetConfig commits a change.
func (a *Adapter) OnReload(fn func()) {
	a.config.OnReload(fn)
}

// SetMetric publishes a metric value.
func (a *Adapter) SetMetric(key string, value any) {
	a.metrics.Set(key, value)
}

// RegisterDebugProbe registers a named introspection hook.
func (a *Adapter) RegisterDebugProbe(name string, fn func() any) {
	a.debug.RegisterProbe(name, fn)
}

// Stats merges metric values and probe outputs into one snapshot; probe
// keys are prefixed with "debug.".
func (a *Adapter) Stats() map[string]any {
	combined := a.metrics.GetSnapshot()
	for k, v := range a.debug.DumpState() {
		combined["debug."+k] = v
	}
	return combined
}
