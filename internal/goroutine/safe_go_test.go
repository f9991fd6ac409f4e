package goroutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/freelance-escrow/internal/logger"
)

func TestSafeGo_RecoversPanic(t *testing.T) {
	logger.Silence()
	done := make(chan struct{})
	SafeGo("test", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("горутина не завершилась")
	}
}

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan error, 1)
	SafeGoWithContext(ctx, "test", func(ctx context.Context) {
		<-ctx.Done()
		got <- ctx.Err()
	})
	cancel()

	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("контекст не передан")
	}
}
