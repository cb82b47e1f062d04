package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithoutClient(t *testing.T) {
	_, _, err := NewLocker(nil).Acquire(context.Background(), "job", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	var store *ReportStore
	_, err = store.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)

	var lk *Lock
	assert.NoError(t, lk.Release(context.Background()))
}
