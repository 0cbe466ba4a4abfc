package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	require.Equal(t, "", utils.Value[string](nil))
	require.Equal(t, "2025-01-01", utils.Value(utils.Ptr("2025-01-01")))
}

func TestPtrCopies(t *testing.T) {
	v := 1
	p := utils.Ptr(v)
	v = 2
	require.Equal(t, 1, *p)
}
