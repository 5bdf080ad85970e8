package suppressor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/storage/memory"
)

type brokenStore struct{}

func (brokenStore) Add(ctx context.Context, key string) error {
	return errors.New("store unavailable")
}

func (brokenStore) Has(ctx context.Context, key string) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestMarkHiddenThenIsHidden(t *testing.T) {
	s := NewService(memory.NewSessionStore(), common.GetLogger())
	ctx := context.Background()

	assert.False(t, s.IsHidden(ctx, "job-1"))

	s.MarkHidden(ctx, "job-1")

	assert.True(t, s.IsHidden(ctx, "job-1"))
	assert.False(t, s.IsHidden(ctx, "job-2"))
}

func TestMarkHiddenIsIdempotent(t *testing.T) {
	s := NewService(memory.NewSessionStore(), common.GetLogger())
	ctx := context.Background()

	s.MarkHidden(ctx, "job-1")
	s.MarkHidden(ctx, "job-1")

	assert.True(t, s.IsHidden(ctx, "job-1"))
}

func TestEmptyJobIDIgnored(t *testing.T) {
	s := NewService(memory.NewSessionStore(), common.GetLogger())
	ctx := context.Background()

	s.MarkHidden(ctx, "")

	assert.False(t, s.IsHidden(ctx, ""))
}

func TestBrokenStoreDegradesToNoOp(t *testing.T) {
	s := NewService(brokenStore{}, common.GetLogger())
	ctx := context.Background()

	// Neither call may panic or surface the store error.
	s.MarkHidden(ctx, "job-1")
	assert.False(t, s.IsHidden(ctx, "job-1"), "a failing store treats every job as visible")
}
