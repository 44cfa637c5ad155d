package purge

import (
	"context"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

// RosterSource lists the users visible to a robot's directory session.
type RosterSource interface {
	FetchUsers(ctx context.Context, cred model.Credential) ([]model.DirectoryUser, error)
}

// DirectoryAdmin removes accounts from the directory.
type DirectoryAdmin interface {
	RemoveUser(ctx context.Context, cred model.Credential, userID string) error
}

// Notifier delivers the pre-removal warning to a flagged user.
type Notifier interface {
	SendWarning(ctx context.Context, robot *model.Robot, rec *model.PurgeRecord) error
}
