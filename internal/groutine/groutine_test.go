package groutine_test

import (
	"context"
	"testing"
	"time"

	"github.com/srg/blelink/internal/groutine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoPropagatesName(t *testing.T) {
	names := make(chan string, 1)

	groutine.Go(nil, "worker-42", func(ctx context.Context) {
		names <- groutine.GetName(ctx)
	})

	select {
	case name := <-names:
		assert.Equal(t, "worker-42", name)
	case <-time.After(time.Second):
		t.Fatal("goroutine MUST run")
	}
}

func TestStartClosesDone(t *testing.T) {
	release := make(chan struct{})

	done := groutine.Start(context.Background(), "blocked", func(ctx context.Context) {
		<-release
	})

	select {
	case <-done:
		t.Fatal("done MUST stay open while fn runs")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestGetNameWithoutLabel(t *testing.T) {
	assert.Equal(t, "", groutine.GetName(context.Background()))
	assert.Equal(t, "", groutine.GetName(nil)) //nolint:staticcheck
}
