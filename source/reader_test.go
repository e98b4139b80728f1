package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := Static{"a", "b"}
	got, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	got[0] = "changed"
	assert.Equal(t, "a", s[0])
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFunc(t *testing.T) {
	var r Reader = Func(func(ctx context.Context) ([]string, error) { return nil, errors.New("down") })
	_, err := r.ReadAll(context.Background())
	assert.EqualError(t, err, "down")
}
