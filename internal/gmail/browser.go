package gmail

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser starts the platform URL handler for an http(s) URL. It does not
// wait for the browser; failure only means the user has to copy the URL.
func OpenBrowser(url string) error {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("refusing to open non-HTTP URL: %s", url)
	}

	var cmd string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		cmd, args = "open", []string{url}
	case "linux":
		cmd, args = "xdg-open", []string{url}
	case "windows":
		cmd, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return exec.Command(cmd, args...).Start()
}
