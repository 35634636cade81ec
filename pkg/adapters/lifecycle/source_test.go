package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lockbox/pkg/core"
)

func TestSource_ForwardsFilteredEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 3)
	src := NewSource(in, core.EventExternalChange)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventSaved, Locator: "a.lbx"}
	in <- core.Event{Type: core.EventExternalChange, Locator: "a.lbx"}
	close(in)

	select {
	case e, ok := <-src.Events():
		require.True(t, ok)
		ev, isVault := e.(core.Event)
		require.True(t, isVault)
		assert.Equal(t, core.EventExternalChange, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case _, ok := <-src.Events():
		assert.False(t, ok, "source should close after input closes")
	case <-time.After(time.Second):
		t.Fatal("source did not close")
	}
}

func TestSource_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource(make(chan core.Event))
	require.NoError(t, src.Start(ctx))
	cancel()

	select {
	case _, ok := <-src.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("source did not close on cancel")
	}
}
