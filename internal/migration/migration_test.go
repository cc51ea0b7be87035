package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(calls *[]string, name string) StepFunc {
	return func(ctx context.Context, opts Options, state State) error {
		*calls = append(*calls, name)
		return nil
	}
}

func op(calls *[]string) Operation {
	return func(ctx context.Context, opts Options, state State) error {
		*calls = append(*calls, "op")
		return nil
	}
}

func TestRunOrder(t *testing.T) {
	var calls []string
	m := NewManager(nil)
	m.Register(Migration{Name: "m1", Before: step(&calls, "m1.before"), After: step(&calls, "m1.after")})
	m.Register(Migration{Name: "m2", Before: step(&calls, "m2.before"), After: step(&calls, "m2.after")})
	m.Register(Migration{Name: "m3", After: step(&calls, "m3.after")})

	require.NoError(t, m.Run(context.Background(), op(&calls), Options{Action: "create"}))
	assert.Equal(t, []string{"m1.before", "m2.before", "op", "m3.after", "m2.after", "m1.after"}, calls)
}

func TestRunPredicates(t *testing.T) {
	var calls []string
	onlyUpdates := func(opts Options, state State) bool { return opts.Action == "update" }

	m := NewManager(nil)
	m.Register(Migration{
		Name:      "updates",
		Before:    step(&calls, "before"),
		After:     step(&calls, "after"),
		ShouldRun: ShouldRun{Before: onlyUpdates, After: onlyUpdates},
	})
	m.Register(Migration{
		Name:      "afterOnly",
		Before:    step(&calls, "gated.before"),
		After:     step(&calls, "gated.after"),
		ShouldRun: ShouldRun{Before: func(Options, State) bool { return false }},
	})

	require.NoError(t, m.Run(context.Background(), op(&calls), Options{Action: "create"}))
	assert.Equal(t, []string{"op", "gated.after"}, calls)

	calls = nil
	require.NoError(t, m.Run(context.Background(), op(&calls), Options{Action: "update"}))
	assert.Equal(t, []string{"before", "op", "gated.after", "after"}, calls)
}

func TestRunSharesState(t *testing.T) {
	m := NewManager(nil)
	var seen any
	m.Register(Migration{
		Name: "carry",
		Before: func(ctx context.Context, opts Options, state State) error {
			state["count"] = len(opts.Data)
			return nil
		},
		After: func(ctx context.Context, opts Options, state State) error {
			seen = state["count"]
			return nil
		},
	})
	require.NoError(t, m.Run(context.Background(), op(new([]string)), Options{Data: map[string]any{"a": 1, "b": 2}}))
	assert.Equal(t, 2, seen)
}

func TestRunAborts(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		failAt string
		want   []string
	}{
		{"before", "m2.before", []string{"m1.before", "m2.before"}},
		{"operation", "op", []string{"m1.before", "m2.before", "op"}},
		{"after", "m2.after", []string{"m1.before", "m2.before", "op", "m2.after"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			record := func(name string) func(ctx context.Context, opts Options, state State) error {
				return func(ctx context.Context, opts Options, state State) error {
					calls = append(calls, name)
					if name == tt.failAt {
						return boom
					}
					return nil
				}
			}
			m := NewManager(nil)
			m.Register(Migration{Name: "m1", Before: record("m1.before"), After: record("m1.after")})
			m.Register(Migration{Name: "m2", Before: record("m2.before"), After: record("m2.after")})

			err := m.Run(context.Background(), record("op"), Options{Action: "delete"})
			require.ErrorIs(t, err, boom)
			assert.Equal(t, tt.want, calls)
		})
	}
}
