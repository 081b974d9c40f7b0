package inject

import (
	"fmt"
	"os"
)

// DaemonProbe reports whether the ydotool daemon's control socket exists
// and where. It is an existence check, not a connectivity check.
type DaemonProbe func() (path string, ok bool)

// YdotoolSocket probes $YDOTOOL_SOCKET, the per-user runtime socket and
// the /tmp fallback, in that order.
func YdotoolSocket() (string, bool) {
	for _, p := range ydotoolSocketPaths(os.Getenv("YDOTOOL_SOCKET"), os.Getuid()) {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func ydotoolSocketPaths(override string, uid int) []string {
	paths := make([]string, 0, 3)
	if override != "" {
		paths = append(paths, override)
	}
	return append(paths,
		fmt.Sprintf("/run/user/%d/.ydotool_socket", uid),
		"/tmp/.ydotool_socket",
	)
}
