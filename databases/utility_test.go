package databases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageOpts(t *testing.T) {
	opts := pageOpts(10, 3)
	assert.Equal(t, int64(10), *opts.Limit)
	assert.Equal(t, int64(20), *opts.Skip)

	// absent page parameter means the first page
	opts = pageOpts(10, 0)
	assert.Equal(t, int64(0), *opts.Skip)

	opts = pageOpts(10, 1)
	assert.Equal(t, int64(0), *opts.Skip)
}
