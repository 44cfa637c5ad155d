package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/config"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/directory"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/notify"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/objectstore"
)

// BlobStore is a config blob store that can also be health-probed.
type BlobStore interface {
	objectstore.BlobStore
	HealthPing(ctx context.Context) error
}

// NewBlobStore returns the S3 store when credentials are configured and an
// in-memory store otherwise. A missing bucket is created in the background.
func NewBlobStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (BlobStore, error) {
	if !cfg.ObjectStoreEnabled() {
		log.Warn().Msg("S3 credentials not set; robot config blobs kept in memory")
		return objectstore.NewMemory(), nil
	}
	s3, err := objectstore.NewS3(objectstore.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	go func() {
		bctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()
		if err := s3.EnsureBucket(bctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("object store bootstrap failed")
		}
	}()
	return s3, nil
}

// NewNotifier returns an SMTP-backed notifier, or one that only logs when
// no sender address is configured.
func NewNotifier(cfg *config.Config, log zerolog.Logger) (*notify.Notifier, error) {
	if !cfg.NotificationsEnabled() {
		log.Warn().Msg("NOTIFICATION_EMAIL not set; emails are logged, not sent")
		return notify.New(notify.NewLogSender(log), log), nil
	}
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.NotificationEmail,
		Password: cfg.NotificationPassword,
	})
	if err != nil {
		return nil, err
	}
	return notify.New(sender, log), nil
}

// NewDirectoryClient builds the Atlassian roster and removal client.
func NewDirectoryClient(cfg *config.Config, log zerolog.Logger) *directory.Client {
	if cfg.SiteBaseURL == "" {
		log.Warn().Msg("SITE_BASE_URL not set; directory removals will fail")
	}
	return directory.New(directory.Config{
		AdminBaseURL:   cfg.AdminBaseURL,
		SiteBaseURL:    cfg.SiteBaseURL,
		OrganizationID: cfg.OrganizationID,
		Timeout:        cfg.CallTimeout,
		BaseBackoff:    500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}, log)
}
