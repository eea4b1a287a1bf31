package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerWithoutClientAlwaysAllows(t *testing.T) {
	var d *Debouncer
	ok, err := d.Allow(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewDebouncer(nil, "x:").Allow(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
