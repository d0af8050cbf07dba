package testhelper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// InstallFile copies the test fixture srcFile to dstFile, creating the
// parent directories.
func InstallFile(t *testing.T, srcFile, dstFile string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(dstFile), os.ModePerm))
	t.Logf("install %s to %s", srcFile, dstFile)
	b, err := os.ReadFile(srcFile)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dstFile, b, 0644))
}

// WriteFile writes s to the file p, creating the parent directories.
func WriteFile(t *testing.T, p, s string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), os.ModePerm))
	require.NoError(t, os.WriteFile(p, []byte(s), 0644))
}

// Main runs the tests, or the execute function when the test binary is
// re-executed by a test with GO_TEST_MODE=off. This allows tests to verify
// the exit code and outputs of a command calling os.Exit.
func Main(m *testing.M, execute func([]string)) {
	switch os.Getenv("GO_TEST_MODE") {
	case "":
		// test mode
		_ = os.Setenv("GO_TEST_MODE", "off")
		os.Exit(m.Run())

	case "off":
		// test bypass mode
		_ = os.Setenv("LANG", "C.UTF-8")
		execute(os.Args[1:])
		os.Exit(0)
	}
}
