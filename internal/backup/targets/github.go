package targets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/logger"
)

// DefaultGitHubAPIURL is the public GitHub REST endpoint.
const DefaultGitHubAPIURL = "https://api.github.com"

const githubRequestTimeout = 60 * time.Second

// GitHubConfig configures a GitHubTarget.
type GitHubConfig struct {
	Owner  string
	Repo   string
	Branch string // empty means the repository default branch
	Path   string // directory inside the repository
	Token  string
	APIURL string
}

// GitHubTarget stores bundles as files in a GitHub repository through the
// contents API. Storing a file that already exists creates a new commit.
type GitHubTarget struct {
	cfg    GitHubConfig
	client *http.Client
	retry  RetryConfig
	log    logger.Logger
}

// NewGitHubTarget returns a GitHub target.
func NewGitHubTarget(cfg GitHubConfig) (*GitHubTarget, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultGitHubAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.Path = strings.Trim(cfg.Path, "/")

	t := &GitHubTarget{
		cfg:    cfg,
		client: &http.Client{Timeout: githubRequestTimeout},
		retry:  DefaultRetryConfig(),
		log:    GetLogger().With(logger.String("target", "github")),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Name returns the name of this target
func (t *GitHubTarget) Name() string { return "github" }

// Validate checks the configuration.
func (t *GitHubTarget) Validate() error {
	switch {
	case t.cfg.Owner == "":
		return backup.NewError(backup.ErrConfig, "github: owner is required", nil)
	case t.cfg.Repo == "":
		return backup.NewError(backup.ErrConfig, "github: repo is required", nil)
	case t.cfg.Token == "":
		return backup.NewError(backup.ErrConfig, "github: token is required", nil)
	}
	if _, err := url.ParseRequestURI(t.cfg.APIURL); err != nil {
		return backup.NewError(backup.ErrConfig, "github: invalid api url", err)
	}
	return nil
}

type githubContent struct {
	SHA string `json:"sha"`
}

type githubPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// githubStatusError is an unexpected API response.
type githubStatusError struct {
	status int
	body   string
}

func (e *githubStatusError) Error() string {
	return fmt.Sprintf("github api returned %d: %s", e.status, e.body)
}

// Store creates or updates filename in the configured repository path.
func (t *GitHubTarget) Store(ctx context.Context, filename string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	endpoint := t.contentsURL(filename)
	var sha string
	err := WithRetry(ctx, t.retry, t.log, func() error {
		var err error
		sha, err = t.existingSHA(ctx, endpoint)
		return err
	})
	if err != nil {
		return t.wrap(ctx, "github: failed to look up existing file", err)
	}

	body, err := json.Marshal(githubPutRequest{
		Message: "KamiAI backup " + filename,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  t.cfg.Branch,
		SHA:     sha,
	})
	if err != nil {
		return backup.NewError(backup.ErrUnknown, "github: failed to encode request", err)
	}

	err = WithRetry(ctx, t.retry, t.log, func() error {
		return t.put(ctx, endpoint, body)
	})
	if err != nil {
		return t.wrap(ctx, "github: failed to upload backup", err)
	}

	t.log.Info("backup uploaded",
		logger.String("repo", t.cfg.Owner+"/"+t.cfg.Repo),
		logger.String("file", filename),
		logger.Int("size", len(data)))
	return nil
}

func (t *GitHubTarget) contentsURL(filename string) string {
	p := path.Join(t.cfg.Path, filename)
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		t.cfg.APIURL, url.PathEscape(t.cfg.Owner), url.PathEscape(t.cfg.Repo), p)
	if t.cfg.Branch != "" {
		u += "?ref=" + url.QueryEscape(t.cfg.Branch)
	}
	return u
}

// existingSHA returns the blob sha of the file at endpoint, or "" when absent.
func (t *GitHubTarget) existingSHA(ctx context.Context, endpoint string) (string, error) {
	req, err := t.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", statusError(resp)
	}

	var c githubContent
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return "", fmt.Errorf("decode contents response: %w", err)
	}
	return c.SHA, nil
}

func (t *GitHubTarget) put(ctx context.Context, endpoint string, body []byte) error {
	// The branch travels in the body for writes.
	endpoint, _, _ = strings.Cut(endpoint, "?")
	req, err := t.newRequest(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (t *GitHubTarget) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}

func (t *GitHubTarget) wrap(ctx context.Context, msg string, err error) error {
	if backup.CodeOf(err) != backup.ErrUnknown {
		return err
	}
	if ctx.Err() != nil {
		return backup.NewError(backup.ErrCanceled, msg, err)
	}
	return backup.NewError(backup.ErrNetwork, msg, err)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := &githubStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return backup.NewError(backup.ErrConfig, "github: access denied", err)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return backup.NewError(backup.ErrValidation, "github: request rejected", err)
	}
	if resp.StatusCode >= 500 {
		// 5xx responses are retried
		return fmt.Errorf("temporary server error: %w", err)
	}
	return err
}
