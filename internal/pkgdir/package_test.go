package pkgdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T, name string, withPython bool) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tests"), 0755))
	if withPython {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "python"), 0755))
	}
	return root
}

func TestFromRoot(t *testing.T) {
	t.Run("with_python_dir", func(t *testing.T) {
		root := newRoot(t, "rigging", true)
		pkg, err := FromRoot(root)
		require.NoError(t, err)
		assert.Equal(t, "rigging", pkg.Name)
		assert.Equal(t, filepath.Join(root, "tests"), pkg.TestsDir)
		assert.Equal(t, filepath.Join(root, "python"), pkg.PythonDir)
	})

	t.Run("python_dir_is_optional", func(t *testing.T) {
		pkg, err := FromRoot(newRoot(t, "anim", false))
		require.NoError(t, err)
		assert.Empty(t, pkg.PythonDir)
	})

	t.Run("missing_root_is_fatal", func(t *testing.T) {
		_, err := FromRoot(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "package root does not exist")
	})

	t.Run("missing_tests_dir_is_fatal", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "empty")
		require.NoError(t, os.MkdirAll(root, 0755))
		_, err := FromRoot(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing tests/")
	})
}

// One bad root fails the whole batch; order is preserved otherwise.
func TestFromRoots(t *testing.T) {
	a := newRoot(t, "a", true)
	b := newRoot(t, "b", false)

	packages, err := FromRoots([]string{a, b})
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, []string{packages[0].Root, packages[1].Root}, Roots(packages))
	assert.Equal(t, "a", packages[0].Name)

	_, err = FromRoots([]string{a, filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestPythonDirs(t *testing.T) {
	a := newRoot(t, "a", true)
	b := newRoot(t, "b", false)
	packages, err := FromRoots([]string{a, b})
	require.NoError(t, err)

	dirs := PythonDirs(packages)
	require.Len(t, dirs, 1)
	assert.Equal(t, filepath.Join(a, "python"), dirs[0])
}
