package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// WantError checks err against assert.ErrorAssertionFunc, returning true if an
// error was encountered for short-circuiting.
func WantError(t assert.TestingT, wantErr assert.ErrorAssertionFunc, err error, i ...interface{}) bool {
	if wantErr == nil {
		wantErr = assert.NoError
	}
	wantErr(t, err, i...)
	return err != nil
}

// AssertErrorContains returns assert.ErrorAssertionFunc that asserts that the error
// message contains str.
func AssertErrorContains(str string) assert.ErrorAssertionFunc {
	return func(t assert.TestingT, err error, i ...interface{}) bool {
		if !assert.Error(t, err, i...) {
			return false
		}
		return assert.Contains(t, err.Error(), str, i...)
	}
}

// WriteFile writes content to name under a new temporary directory, returning
// the full path. The test fails immediately if the file cannot be written.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("cannot write %v: %v", path, err)
	}
	return path
}
