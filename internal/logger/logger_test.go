package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, 42)

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	id, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestUserIDMissing(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestNewRequestIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(NewRequestID())
	assert.NoError(t, err)
}
