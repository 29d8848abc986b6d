package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// ResolveChrome returns the Chrome binary to launch. An explicit path wins,
// then a browser already installed on the host. When neither exists and
// download is true, a Chromium build for the current OS/arch is fetched.
func ResolveChrome(ctx context.Context, bin string, download bool, revision int) (string, error) {
	if bin != "" {
		return bin, nil
	}

	if path, found := launcher.LookPath(); found {
		return path, nil
	}

	if !download {
		return "", fmt.Errorf("no chrome binary found; pass --chrome-bin or --download-chrome")
	}

	downloader := launcher.NewBrowser()
	downloader.Context = ctx
	if revision > 0 {
		downloader.Revision = revision
	}

	path, err := downloader.Get()
	if err != nil {
		return "", fmt.Errorf("failed to download chrome: %w", err)
	}

	return path, nil
}
