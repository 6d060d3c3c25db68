package shared

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

var startCommand = func(cmd *exec.Cmd) error { return cmd.Start() }

// ImageTarget turns a card image candidate into something a browser can open. Remote URLs are returned as-is,
// local paths become absolute file:// URLs.
func ImageTarget(candidate string) (string, error) {
	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") || strings.HasPrefix(candidate, "file://") {
		return candidate, nil
	}
	abs, err := filepath.Abs(filepath.FromSlash(candidate))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// OpenBrowser opens a card image, remote or local, with the system's default handler.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(candidate string) error {
	target, err := ImageTarget(candidate)
	if err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch rt := getRuntime(); rt {
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux":
		cmd = exec.Command("xdg-open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := startCommand(cmd); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	return nil
}
