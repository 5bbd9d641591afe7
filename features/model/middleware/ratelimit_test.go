package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelops/resolve/runtime/model"
)

type stubClient struct {
	err   error
	calls int
}

func (c *stubClient) Complete(context.Context, model.Request) (model.Response, error) {
	c.calls++
	if c.err != nil {
		return model.Response{}, c.err
	}
	return model.Response{Content: "ok"}, nil
}

func TestMiddlewarePassesThrough(t *testing.T) {
	next := &stubClient{}
	client := NewAdaptiveRateLimiter(60000, 120000).Middleware()(next)

	resp, err := client.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 1, next.calls)
}

func TestMiddlewareWrapsNil(t *testing.T) {
	require.Nil(t, NewAdaptiveRateLimiter(60000, 0).Middleware()(nil))
}

func TestBackoffHalvesBudgetOnRateLimit(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 120000)
	l.observe(model.ErrRateLimited)
	require.InDelta(t, 30000, l.currentTPM, 0.1)
	l.observe(model.ErrRateLimited)
	require.InDelta(t, 15000, l.currentTPM, 0.1)
}

func TestBackoffClampsAtFloor(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 0)
	for i := 0; i < 20; i++ {
		l.observe(model.ErrRateLimited)
	}
	require.InDelta(t, 6000, l.currentTPM, 0.1)
}

func TestProbeRecoversAdditively(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 120000)
	l.observe(model.ErrRateLimited)
	require.InDelta(t, 30000, l.currentTPM, 0.1)
	l.observe(nil)
	require.InDelta(t, 33000, l.currentTPM, 0.1)
}

func TestProbeClampsAtCeiling(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 61000)
	l.observe(nil)
	require.InDelta(t, 61000, l.currentTPM, 0.1)
	l.observe(nil)
	require.InDelta(t, 61000, l.currentTPM, 0.1)
}

func TestNonRateLimitErrorsDoNotBackOff(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 120000)
	l.observe(errors.New("connection refused"))
	require.InDelta(t, 60000, l.currentTPM, 0.1)
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 500, estimateTokens(model.Request{}))
	req := model.Request{Messages: []model.Message{{Role: "user", Content: "abcdef"}}}
	require.Equal(t, 502, estimateTokens(req))
}

func TestRateLimitedErrorsStillPropagate(t *testing.T) {
	next := &stubClient{err: model.ErrRateLimited}
	client := NewAdaptiveRateLimiter(60000, 120000).Middleware()(next)

	_, err := client.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "user", Content: "hello"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
}
