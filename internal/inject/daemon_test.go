package inject

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYdotoolSocketPaths(t *testing.T) {
	assert.Equal(t, []string{
		"/run/user/1000/.ydotool_socket",
		"/tmp/.ydotool_socket",
	}, ydotoolSocketPaths("", 1000))

	assert.Equal(t, []string{
		"/custom/sock",
		"/run/user/0/.ydotool_socket",
		"/tmp/.ydotool_socket",
	}, ydotoolSocketPaths("/custom/sock", 0))
}

func TestYdotoolSocketHonoursEnv(t *testing.T) {
	sock := filepath.Join(t.TempDir(), ".ydotool_socket")
	require.NoError(t, os.WriteFile(sock, nil, 0o600))
	t.Setenv("YDOTOOL_SOCKET", sock)

	path, ok := YdotoolSocket()
	assert.True(t, ok)
	assert.Equal(t, sock, path)
}
