package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/store"
	"github.com/cleared-dev/recon/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestWithinProject_OtherProjectDoesNotWait(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.CreateProject(ctx, "a", "alice")
	require.NoError(t, err)
	b, err := s.CreateProject(ctx, "b", "alice")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		held <- s.WithinProject(ctx, a.ID, func(store.Tx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- s.WithinProject(ctx, b.ID, func(store.Tx) error { return nil })
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pass on b waited for a")
	}

	close(release)
	require.NoError(t, <-held)
	require.Equal(t, 0, s.writers.Len())
}
