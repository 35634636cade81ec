package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/core"
)

func TestProvider_RoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHost()
	p := NewProvider(h)

	assert.True(t, core.IsDelegated(p))

	_, err := p.ReadArchive(ctx, "vault")
	assert.ErrorIs(t, err, core.ErrIO)
	assert.ErrorIs(t, err, core.ErrArchiveNotFound)

	require.NoError(t, p.WriteArchive(ctx, "vault", []byte("sealed")))
	data, err := p.ReadArchive(ctx, "vault")
	require.NoError(t, err)
	assert.Equal(t, "sealed", string(data))

	stored, ok := h.Get("vault")
	require.True(t, ok)
	assert.Equal(t, "sealed", string(stored))
	assert.Equal(t, 3, h.Exchanges())
	assert.Equal(t, ProviderState{Exchanges: 3}, p.State())
}

func TestProvider_RejectsEmptyWrite(t *testing.T) {
	p := NewProvider(NewMemoryHost())
	err := p.WriteArchive(context.Background(), "vault", nil)
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestProvider_HostFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("bridge down")

	t.Run("Exchange Error", func(t *testing.T) {
		p := NewProvider(core.HostFunc(func(context.Context, core.FileMap) (core.FileMap, error) {
			return nil, boom
		}))
		err := p.WriteArchive(ctx, "vault", []byte("x"))
		assert.ErrorIs(t, err, core.ErrIO)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, p.State().(ProviderState).Failures)
	})

	t.Run("Write Not Echoed", func(t *testing.T) {
		p := NewProvider(core.HostFunc(func(context.Context, core.FileMap) (core.FileMap, error) {
			return core.FileMap{}, nil
		}))
		err := p.WriteArchive(ctx, "vault", []byte("x"))
		assert.ErrorIs(t, err, core.ErrIO)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		p := NewProvider(NewMemoryHost())
		_, err := p.ReadArchive(cancelled, "vault")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
