package buildinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kamiai/kamiai/internal/errors"
)

// ErrUpdateCheckDisabled is returned when no version URL is configured.
var ErrUpdateCheckDisabled = errors.NewStd("update check is not configured")

// maxVersionBody bounds the version document read from the server.
const maxVersionBody = 256

// UpdateInfo is the outcome of one update check.
type UpdateInfo struct {
	Current     string `json:"current"`
	Latest      string `json:"latest"`
	Available   bool   `json:"updateAvailable"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// UpdateChecker fetches a plain text version string and compares it with
// the running build.
type UpdateChecker struct {
	VersionURL  string
	DownloadURL string
	Timeout     time.Duration
	// Client defaults to an http.Client using Timeout.
	Client *http.Client
}

// Check reports whether the published version differs from current.
func (u *UpdateChecker) Check(ctx context.Context, current string) (UpdateInfo, error) {
	if u == nil || u.VersionURL == "" {
		return UpdateInfo{}, ErrUpdateCheckDisabled
	}

	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: u.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.VersionURL, http.NoBody)
	if err != nil {
		return UpdateInfo{}, updateError(err, "build_request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return UpdateInfo{}, updateError(err, "fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return UpdateInfo{}, updateError(fmt.Errorf("version server returned %s", resp.Status), "fetch")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVersionBody))
	if err != nil {
		return UpdateInfo{}, updateError(err, "read")
	}
	latest := strings.TrimSpace(string(body))
	if latest == "" {
		return UpdateInfo{}, updateError(errors.NewStd("empty version document"), "read")
	}

	info := UpdateInfo{Current: current, Latest: latest, Available: latest != current}
	if info.Available {
		info.DownloadURL = u.DownloadURL
	}
	return info, nil
}

func updateError(err error, op string) error {
	return errors.New(err).
		Component("buildinfo").
		Category(errors.CategoryNetwork).
		Context("operation", op).
		Build()
}
