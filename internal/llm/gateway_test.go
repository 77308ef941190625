package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReply struct {
	resp *CompletionResponse
	err  error
}

// fakeCompleter replays scripted replies, repeating the last one forever.
type fakeCompleter struct {
	replies []fakeReply
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	i := f.calls
	f.calls++
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i].resp, f.replies[i].err
}

func (f *fakeCompleter) Provider() Provider { return "fake" }
func (f *fakeCompleter) Model() string      { return "fake-model" }

func TestGatewayComplete_SuccessFirstAttempt(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{{resp: &CompletionResponse{Text: "ok"}}}}
	var delays []time.Duration
	g := NewGateway(fake, RetryConfig{MaxAttempts: 3},
		WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

	resp, err := g.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, fake.calls)
	assert.Empty(t, delays)
}

func TestGatewayComplete_RetriesTransportErrors(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{
		{err: &TransportError{Err: errors.New("connection reset")}},
		{err: &TransportError{Err: errors.New("connection reset")}},
		{resp: &CompletionResponse{Text: "ok"}},
	}}
	var delays []time.Duration
	g := NewGateway(fake, RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second},
		WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

	resp, err := g.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestGatewayComplete_HonorsRetryAfter(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{
		{err: &RateLimitError{RetryAfter: 3 * time.Second}},
		{resp: &CompletionResponse{Text: "ok"}},
	}}
	var delays []time.Duration
	g := NewGateway(fake, RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 8 * time.Second},
		WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

	_, err := g.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second}, delays)
}

func TestGatewayComplete_CapsRetryAfter(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{
		{err: &RateLimitError{RetryAfter: time.Minute}},
		{resp: &CompletionResponse{Text: "ok"}},
	}}
	var delays []time.Duration
	g := NewGateway(fake, RetryConfig{MaxAttempts: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second},
		WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

	_, err := g.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, delays)
}

func TestGatewayComplete_NonRetryableReturnsImmediately(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{
		{err: &StatusError{StatusCode: 400, Body: "invalid image"}},
	}}
	g := NewGateway(fake, RetryConfig{MaxAttempts: 3}, WithSleeper(func(time.Duration) {}))

	_, err := g.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
	var status *StatusError
	assert.ErrorAs(t, err, &status)
}

func TestGatewayComplete_ExhaustsAttempts(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{
		{err: &StatusError{StatusCode: 503, Body: "unavailable"}},
	}}
	g := NewGateway(fake, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond},
		WithSleeper(func(time.Duration) {}))

	_, err := g.Complete(context.Background(), CompletionRequest{User: "hi"})

	require.Error(t, err)
	assert.Equal(t, 3, fake.calls)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	var status *StatusError
	assert.ErrorAs(t, err, &status)
}

func TestGatewayComplete_StopsOnCancelledContext(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{
		{err: &TransportError{Err: errors.New("reset")}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGateway(fake, RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond},
		WithSleeper(func(time.Duration) { cancel() }))

	_, err := g.Complete(ctx, CompletionRequest{User: "hi"})

	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayPassthrough(t *testing.T) {
	fake := &fakeCompleter{replies: []fakeReply{{resp: &CompletionResponse{}}}}
	g := NewGateway(fake, RetryConfig{})

	assert.Equal(t, Provider("fake"), g.Provider())
	assert.Equal(t, "fake-model", g.Model())
}
