//go:build unix

package steplog

import (
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFile_SecondOpenIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.log")

	first, err := OpenFile(path)
	require.NoError(t, err)

	_, err = OpenFile(path)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, ErrLocked))
	assert.True(t, hestia_err.IsExpectedUserError(err))

	_, err = Forget(path, "A")
	assert.True(t, cerr.Is(err, ErrLocked))

	require.NoError(t, first.Close())

	again, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
