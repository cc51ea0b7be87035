package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/localnerve/contentdb/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	article = &schema.Model{UID: "api::article.article"}
	writer  = &schema.Model{UID: "api::writer.writer"}
)

func recorder(calls *[]string, name string) HookFunc {
	return func(ctx context.Context, model *schema.Model, args ...any) error {
		*calls = append(*calls, name+":"+model.UID)
		return nil
	}
}

func TestRunOrderAndScoping(t *testing.T) {
	var calls []string
	m := NewManager(nil)
	m.Register(Lifecycle{Hooks: map[Action]HookFunc{BeforeCreate: recorder(&calls, "global")}})
	m.Register(Lifecycle{Model: article.UID, Hooks: map[Action]HookFunc{BeforeCreate: recorder(&calls, "article")}})
	m.Register(Lifecycle{Model: writer.UID, Hooks: map[Action]HookFunc{BeforeCreate: recorder(&calls, "writer")}})
	m.Register(Lifecycle{Hooks: map[Action]HookFunc{AfterCreate: recorder(&calls, "after")}})

	require.NoError(t, m.Run(context.Background(), BeforeCreate, article))
	assert.Equal(t, []string{"global:" + article.UID, "article:" + article.UID}, calls)

	calls = nil
	require.NoError(t, m.Run(context.Background(), BeforeCreate, writer))
	assert.Equal(t, []string{"global:" + writer.UID, "writer:" + writer.UID}, calls)

	calls = nil
	require.NoError(t, m.Run(context.Background(), BeforeDelete, writer))
	assert.Empty(t, calls)
}

func TestRunSequentialSideEffects(t *testing.T) {
	m := NewManager(nil)
	payload := map[string]any{}
	m.Register(Lifecycle{Hooks: map[Action]HookFunc{
		BeforeUpdate: func(ctx context.Context, model *schema.Model, args ...any) error {
			args[0].(map[string]any)["slug"] = "first"
			return nil
		},
	}})
	m.Register(Lifecycle{Hooks: map[Action]HookFunc{
		BeforeUpdate: func(ctx context.Context, model *schema.Model, args ...any) error {
			data := args[0].(map[string]any)
			data["seen"] = data["slug"]
			return nil
		},
	}})

	require.NoError(t, m.Run(context.Background(), BeforeUpdate, article, payload))
	assert.Equal(t, "first", payload["seen"])
}

func TestRunStopsAtFirstError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := NewManager(nil)
	m.Register(Lifecycle{Hooks: map[Action]HookFunc{
		AfterDelete: func(ctx context.Context, model *schema.Model, args ...any) error { return boom },
	}})
	m.Register(Lifecycle{Hooks: map[Action]HookFunc{AfterDelete: recorder(&calls, "never")}})

	err := m.Run(context.Background(), AfterDelete, article)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, calls)
}

func TestBeforeAfter(t *testing.T) {
	assert.Equal(t, BeforeFindOne, Before("findOne"))
	assert.Equal(t, AfterCountSearch, After("countSearch"))
	assert.Equal(t, BeforeCreate, Before("create"))
}
