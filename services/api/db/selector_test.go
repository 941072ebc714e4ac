package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func countingConnect(calls *int, err error) func(context.Context, string) (*pgxpool.Pool, error) {
	return func(context.Context, string) (*pgxpool.Pool, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return nil, nil
	}
}

func TestSelector_NoURLSelectsFiles(t *testing.T) {
	calls := 0
	sel := NewSelector("  ", zap.NewNop())
	sel.connect = countingConnect(&calls, nil)

	assert.False(t, sel.HasBackend(context.Background()))
	assert.False(t, sel.HasBackend(context.Background()))
	assert.Nil(t, sel.Store())
	assert.Zero(t, calls)
}

func TestSelector_ConnectsOnce(t *testing.T) {
	calls := 0
	sel := NewSelector("postgres://localhost/grid", zap.NewNop())
	sel.connect = countingConnect(&calls, nil)

	assert.True(t, sel.HasBackend(context.Background()))
	assert.True(t, sel.HasBackend(context.Background()))
	assert.NotNil(t, sel.Store())
	assert.Equal(t, 1, calls)
}

func TestSelector_FailureIsPermanent(t *testing.T) {
	calls := 0
	core, logs := observer.New(zapcore.InfoLevel)
	sel := NewSelector("postgres://localhost/grid", zap.New(core))
	sel.connect = countingConnect(&calls, errors.New("connection refused"))

	assert.False(t, sel.HasBackend(context.Background()))
	assert.False(t, sel.HasBackend(context.Background()))
	assert.Nil(t, sel.Store())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "")
	assert.Error(t, err)
}
