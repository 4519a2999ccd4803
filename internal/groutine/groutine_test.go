package groutine

import (
	"context"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_NamesGoroutine(t *testing.T) {
	type result struct {
		name  string
		label string
	}
	got := make(chan result, 1)

	Go(context.Background(), "station-events", func(ctx context.Context) {
		label, _ := pprof.Label(ctx, "goroutine_name")
		got <- result{name: Name(ctx), label: label}
	})

	select {
	case r := <-got:
		assert.Equal(t, "station-events", r.name, "context MUST carry the goroutine name")
		assert.Equal(t, "station-events", r.label, "pprof label MUST carry the goroutine name")
	case <-time.After(time.Second):
		require.Fail(t, "goroutine did not run")
	}
}

func TestGo_NilParentContext(t *testing.T) {
	done := make(chan string, 1)
	//nolint:staticcheck // nil context is accepted on purpose
	Go(nil, "worker", func(ctx context.Context) {
		done <- Name(ctx)
	})

	select {
	case name := <-done:
		assert.Equal(t, "worker", name)
	case <-time.After(time.Second):
		require.Fail(t, "goroutine did not run")
	}
}

func TestName_WithoutGo(t *testing.T) {
	assert.Equal(t, "", Name(context.Background()))
	//nolint:staticcheck // nil context is accepted on purpose
	assert.Equal(t, "", Name(nil))
}
