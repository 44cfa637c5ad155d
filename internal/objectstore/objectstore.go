// Package objectstore mirrors each robot's configuration as a YAML blob in
// an S3-compatible bucket so operators can inspect it outside the database.
package objectstore

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

// BlobStore persists robot configuration blobs.
type BlobStore interface {
	PutRobotConfig(ctx context.Context, r *model.Robot) error
	// GetRobotConfig returns the raw YAML blob or model.ErrNotFound.
	GetRobotConfig(ctx context.Context, robotID string) ([]byte, error)
	// DeleteRobotConfig is a no-op when the blob does not exist.
	DeleteRobotConfig(ctx context.Context, robotID string) error
}

// RobotConfig is the YAML document stored per robot. Secrets are redacted.
type RobotConfig struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description,omitempty"`
	Credential   model.Credential `yaml:"credential"`
	Policy       model.Policy     `yaml:"policy"`
	CreationTime time.Time        `yaml:"creationTime"`
}

// ObjectKey is the bucket key of a robot's blob.
func ObjectKey(robotID string) string {
	return fmt.Sprintf("robots/robot_%s.yaml", robotID)
}

// Marshal renders the blob for r.
func Marshal(r *model.Robot) ([]byte, error) {
	red := r.Redacted()
	return yaml.Marshal(RobotConfig{
		ID:           red.ID,
		Name:         red.Name,
		Description:  red.Description,
		Credential:   red.Credential,
		Policy:       red.Policy,
		CreationTime: red.CreationTime,
	})
}

// Unmarshal parses a blob produced by Marshal.
func Unmarshal(data []byte) (*RobotConfig, error) {
	var cfg RobotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode robot config: %w", err)
	}
	return &cfg, nil
}
