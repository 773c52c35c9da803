package control

import (
	"sync"
	"testing"
)

func TestAdapterMetricsAndProbes(t *testing.T) {
	a := NewAdapter()
	a.SetMetric("conns.active", int64(3))
	a.RegisterDebugProbe("inflight", func() any { return 7 })

	stats := a.Stats()
	if stats["conns.active"] != int64(3) {
		t.Fatalf("metric missing: %v", stats)
	}
	if stats["debug.inflight"] != 7 {
		t.Fatalf("probe missing: %v", stats)
	}
	if _, ok := stats["debug.platform.cpus"]; !ok {
		t.Fatalf("platform probes not registered: %v", stats)
	}
}

func TestAdapterReloadListener(t *testing.T) {
	a := NewAdapter()

	var mu sync.Mutex
	fired := make(chan struct{}, 1)
	a.OnReload(func() {
		mu.Lock()
		defer mu.Unlock()
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	a.SetConfig(map[string]any{"max_connections": 128})
	<-fired

	cfg := a.GetConfig()
	if cfg["max_connections"] != 128 {
		t.Fatalf("config not merged: %v", cfg)
	}
}
