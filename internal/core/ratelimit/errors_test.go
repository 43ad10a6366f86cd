package ratelimit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTaggedErrors(t *testing.T) {
	require.Equal(t, CategoryRetryable, Classify(Retryable(errors.New("anything"))))
	require.Equal(t, CategoryPermanent, Classify(Permanent(errors.New("429 looks transient but the tag wins"))))

	wrapped := fmt.Errorf("call failed: %w", Retryable(errors.New("boom")))
	require.Equal(t, CategoryRetryable, Classify(wrapped))
}

func TestClassifyUntaggedErrors(t *testing.T) {
	retryable := []string{
		"request timeout",
		"dial tcp: connection refused",
		"network is unreachable",
		"HTTP 503 Service Unavailable",
		"429 Too Many Requests",
		"rate limit exceeded",
	}
	for _, msg := range retryable {
		require.Equal(t, CategoryRetryable, Classify(errors.New(msg)), msg)
	}

	permanent := []string{
		"validation failed: name is required",
		"404 not found",
		"duplicate entry",
	}
	for _, msg := range permanent {
		require.Equal(t, CategoryPermanent, Classify(errors.New(msg)), msg)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Retryable(inner)
	require.ErrorIs(t, err, inner)
	require.Equal(t, "boom", err.Error())
}
