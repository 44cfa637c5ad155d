// Package validate checks request payloads before they reach the services.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
	maxDays           = 3650
)

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !strfmt.IsEmail(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if len(*v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// Days bounds a day-count policy field.
func Days(field string, v *int) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > maxDays {
		return fmt.Errorf("%s must be between 0 and %d", field, maxDays)
	}
	return nil
}

func PlatformType(v *string) error {
	if v == nil {
		return nil
	}
	if _, ok := model.ParsePlatformType(*v); !ok {
		return fmt.Errorf("platformType must be CLOUD or SERVER")
	}
	return nil
}

// -------- Request specific helpers ----------

// CreateRobot validates input for a new robot.
func CreateRobot(name, platformEmail, platformType string, description *string, scheduleDays, lastActiveDays int) error {
	if err := NonEmpty("name", name); err != nil {
		return err
	}
	if err := MaxLen("name", &name, maxNameLen); err != nil {
		return err
	}
	if err := MaxLen("description", description, maxDescriptionLen); err != nil {
		return err
	}
	if platformEmail != "" {
		if err := Email(platformEmail); err != nil {
			return fmt.Errorf("platformEmail: %w", err)
		}
	}
	if err := PlatformType(&platformType); err != nil {
		return err
	}
	if err := Days("scheduleDays", &scheduleDays); err != nil {
		return err
	}
	return Days("lastActiveDays", &lastActiveDays)
}

// PatchRobot validates the set fields of a partial update.
func PatchRobot(p model.RobotPatch) error {
	if p.Name != nil {
		if err := NonEmpty("name", *p.Name); err != nil {
			return err
		}
	}
	if err := MaxLen("name", p.Name, maxNameLen); err != nil {
		return err
	}
	if err := MaxLen("description", p.Description, maxDescriptionLen); err != nil {
		return err
	}
	if p.PlatformEmail != nil && *p.PlatformEmail != "" {
		if err := Email(*p.PlatformEmail); err != nil {
			return fmt.Errorf("platformEmail: %w", err)
		}
	}
	if err := PlatformType(p.PlatformType); err != nil {
		return err
	}
	if err := Days("scheduleDays", p.ScheduleDays); err != nil {
		return err
	}
	return Days("lastActiveDays", p.LastActiveDays)
}

// ReportEmail validates the report mailing request.
func ReportEmail(to string) error {
	return Email(to)
}
