package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/objectstore"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/purge"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// Runner executes one purge pass for a robot. LockRobot excludes passes of
// robotID until the returned unlock is called.
type Runner interface {
	RunRobot(ctx context.Context, robot *model.Robot, now time.Time) (purge.RunResult, error)
	LockRobot(robotID string) (unlock func())
}

// RobotService manages robot profiles and their mirrored config blobs.
type RobotService struct {
	store  store.Store
	blobs  objectstore.BlobStore
	runner Runner
	now    func() time.Time
	log    zerolog.Logger
}

func NewRobotService(s store.Store, blobs objectstore.BlobStore, runner Runner, log zerolog.Logger) *RobotService {
	return &RobotService{store: s, blobs: blobs, runner: runner, now: func() time.Time { return time.Now().UTC() }, log: log}
}

// CreateRobot validates and persists r. The policy starts with no
// lastUpdated so the first pass evaluates immediately.
func (s *RobotService) CreateRobot(ctx context.Context, r *model.Robot) (*model.Robot, error) {
	if r.Credential.PlatformType == "" {
		r.Credential.PlatformType = model.PlatformCloud
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.Policy.LastUpdated = nil
	r.CreationTime = s.now()
	out, err := s.store.Robots().Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, out)
	return out, nil
}

func (s *RobotService) GetRobot(ctx context.Context, robotID string) (*model.Robot, error) {
	return s.store.Robots().Get(ctx, robotID)
}

func (s *RobotService) ListRobots(ctx context.Context) ([]*model.Robot, error) {
	return s.store.Robots().List(ctx)
}

// PatchRobot applies the set fields of p and returns the stored result.
func (s *RobotService) PatchRobot(ctx context.Context, robotID string, p model.RobotPatch) (*model.Robot, error) {
	if p.PlatformType != nil {
		if _, ok := model.ParsePlatformType(*p.PlatformType); !ok {
			return nil, fmt.Errorf("%w: unknown platform type %q", model.ErrValidation, *p.PlatformType)
		}
	}
	r, err := s.store.Robots().Get(ctx, robotID)
	if err != nil {
		return nil, err
	}
	p.Apply(r)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Robots().Update(ctx, r); err != nil {
		return nil, err
	}
	out, err := s.store.Robots().Get(ctx, robotID)
	if err != nil {
		return nil, err
	}
	s.mirror(ctx, out)
	return out, nil
}

// DeleteRobot removes the robot's queued purge records, then the robot,
// then its config blob. The purge log is kept. It waits for a running pass
// of the robot to finish so no record is queued after the cascade.
func (s *RobotService) DeleteRobot(ctx context.Context, robotID string) error {
	unlock := s.runner.LockRobot(robotID)
	defer unlock()

	if _, err := s.store.Robots().Get(ctx, robotID); err != nil {
		return err
	}
	n, err := s.store.PurgeRecords().DeleteByRobot(ctx, robotID)
	if err != nil {
		return fmt.Errorf("delete purge records: %w", err)
	}
	if err := s.store.Robots().Delete(ctx, robotID); err != nil {
		return err
	}
	if err := s.blobs.DeleteRobotConfig(ctx, robotID); err != nil {
		s.log.Warn().Err(err).Str("robot_id", robotID).Msg("Failed to delete robot config blob")
	}
	s.log.Info().Str("robot_id", robotID).Int64("purge_records", n).Msg("Robot deleted")
	return nil
}

// RobotConfig returns the YAML blob of the robot, rebuilding it from the
// store when the bucket has no copy.
func (s *RobotService) RobotConfig(ctx context.Context, robotID string) ([]byte, error) {
	r, err := s.store.Robots().Get(ctx, robotID)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.GetRobotConfig(ctx, robotID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	s.mirror(ctx, r)
	return objectstore.Marshal(r)
}

// RunRobotNow runs one pass for the robot outside the schedule.
func (s *RobotService) RunRobotNow(ctx context.Context, robotID string) (purge.RunResult, error) {
	r, err := s.store.Robots().Get(ctx, robotID)
	if err != nil {
		return purge.RunResult{}, err
	}
	if !r.Policy.Runnable() {
		return purge.RunResult{}, fmt.Errorf("%w: %s", model.ErrRobotInactive, robotID)
	}
	return s.runner.RunRobot(ctx, r, s.now())
}

func (s *RobotService) mirror(ctx context.Context, r *model.Robot) {
	if err := s.blobs.PutRobotConfig(ctx, r); err != nil {
		s.log.Warn().Err(err).Str("robot_id", r.ID).Msg("Failed to mirror robot config blob")
	}
}
