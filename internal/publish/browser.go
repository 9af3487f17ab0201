package publish

import (
	"github.com/pkg/browser"
	"go.uber.org/zap"
)

// openURL is swapped out in tests.
var openURL = browser.OpenURL

// Open launches the default browser on url.
func Open(url string) error {
	if err := openURL(url); err != nil {
		return &PublisherError{Op: "open browser", Err: err}
	}
	zap.L().Info("publish: opened browser", zap.String("url", url))
	return nil
}
