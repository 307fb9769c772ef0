package targets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/logger"
)

const bundleMimeType = "application/octet-stream"

// GoogleDriveConfig configures a GoogleDriveTarget.
type GoogleDriveConfig struct {
	// CredentialsFile is a service account or authorized user JSON file.
	CredentialsFile string
	// Token is a static OAuth access token, used when CredentialsFile is empty.
	Token string
	// FolderID is the parent folder; empty stores in the drive root.
	FolderID string
}

// GoogleDriveTarget stores bundles as files in Google Drive. A file with the
// same name in the folder is overwritten in place.
type GoogleDriveTarget struct {
	cfg   GoogleDriveConfig
	svc   *drive.Service
	retry RetryConfig
	log   logger.Logger
}

// NewGoogleDriveTarget returns a Google Drive target.
func NewGoogleDriveTarget(ctx context.Context, cfg GoogleDriveConfig) (*GoogleDriveTarget, error) {
	var opt option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	case cfg.Token != "":
		opt = option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	default:
		return nil, backup.NewError(backup.ErrConfig, "gdrive: credentials file or token is required", nil)
	}
	return newGoogleDriveTarget(ctx, cfg, opt, option.WithScopes(drive.DriveFileScope))
}

func newGoogleDriveTarget(ctx context.Context, cfg GoogleDriveConfig, opts ...option.ClientOption) (*GoogleDriveTarget, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, backup.NewError(backup.ErrConfig, "gdrive: failed to create client", err)
	}
	return &GoogleDriveTarget{
		cfg:   cfg,
		svc:   svc,
		retry: DefaultRetryConfig(),
		log:   GetLogger().With(logger.String("target", "gdrive")),
	}, nil
}

// Name returns the name of this target
func (t *GoogleDriveTarget) Name() string { return "google" }

// Validate checks the configuration.
func (t *GoogleDriveTarget) Validate() error {
	if t.svc == nil {
		return backup.NewError(backup.ErrConfig, "gdrive: client not initialized", nil)
	}
	return nil
}

// Store uploads data as filename, replacing an existing file of that name.
func (t *GoogleDriveTarget) Store(ctx context.Context, filename string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	var fileID string
	err := WithRetry(ctx, t.retry, t.log, func() error {
		var err error
		fileID, err = t.find(ctx, filename)
		return transient(err)
	})
	if err != nil {
		return driveError(ctx, "gdrive: failed to look up existing file", err)
	}

	err = WithRetry(ctx, t.retry, t.log, func() error {
		media := bytes.NewReader(data)
		if fileID != "" {
			_, err := t.svc.Files.Update(fileID, &drive.File{}).
				Media(media, googleapi.ContentType(bundleMimeType)).
				Context(ctx).Do()
			return transient(err)
		}
		f := &drive.File{Name: filename, MimeType: bundleMimeType}
		if t.cfg.FolderID != "" {
			f.Parents = []string{t.cfg.FolderID}
		}
		_, err := t.svc.Files.Create(f).
			Media(media, googleapi.ContentType(bundleMimeType)).
			Context(ctx).Do()
		return transient(err)
	})
	if err != nil {
		return driveError(ctx, "gdrive: failed to upload backup", err)
	}

	t.log.Info("backup uploaded",
		logger.String("file", filename),
		logger.Bool("replaced", fileID != ""),
		logger.Int("size", len(data)))
	return nil
}

// find returns the id of a non-trashed file called name in the folder.
func (t *GoogleDriveTarget) find(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if t.cfg.FolderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQuery(t.cfg.FolderID))
	}
	list, err := t.svc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// transient marks 5xx and rate limit responses for retry.
func transient(err error) error {
	var apiErr *googleapi.Error
	if err != nil && errors.As(err, &apiErr) &&
		(apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests) {
		return fmt.Errorf("temporary drive error: %w", err)
	}
	return err
}

func driveError(ctx context.Context, msg string, err error) error {
	if backup.CodeOf(err) != backup.ErrUnknown {
		return err
	}
	if ctx.Err() != nil {
		return backup.NewError(backup.ErrCanceled, msg, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return backup.NewError(backup.ErrConfig, msg, err)
		case http.StatusNotFound:
			return backup.NewError(backup.ErrNotFound, msg, err)
		}
	}
	return backup.NewError(backup.ErrNetwork, msg, err)
}
