package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser launches the default system browser at url. Callers fall
// back to printing the URL when this fails.
func OpenBrowser(url string) error {
	var name string
	args := []string{url}

	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "cmd"
		args = []string{"/c", "start", url}
	case "linux", "freebsd", "openbsd", "netbsd":
		name = "xdg-open"
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
