package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/easyscale/easyscale/internal/logger"
	"github.com/easyscale/easyscale/pkg/models"
)

// LoadFromBytes parses one ScalingSchedule manifest. Unknown fields
// are rejected so typos in rule files surface at load time instead of
// silently widening a window.
func LoadFromBytes(data []byte) (*models.ScalingSchedule, error) {
	var schedule models.ScalingSchedule
	if err := yaml.UnmarshalStrict(data, &schedule); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if schedule.APIVersion != models.APIVersion {
		return nil, fmt.Errorf("unsupported apiVersion %q, expected %q", schedule.APIVersion, models.APIVersion)
	}
	if schedule.Kind != models.KindSchedule {
		return nil, fmt.Errorf("unsupported kind %q, expected %q", schedule.Kind, models.KindSchedule)
	}

	applyDefaults(&schedule)
	return &schedule, nil
}

func LoadFromFile(path string) (*models.ScalingSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	schedule, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schedule, nil
}

// LoadFromDirectory loads every .yaml/.yml file in dir, in name order.
// Files that fail to parse or validate are logged and skipped; one bad
// manifest must not take down the rest of the rule set.
func LoadFromDirectory(dir string) ([]*models.ScalingSchedule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	schedules := make([]*models.ScalingSchedule, 0, len(paths))
	for _, path := range paths {
		schedule, err := LoadFromFile(path)
		if err != nil {
			logger.Errorf("Skipping rule file: %v", err)
			continue
		}

		result := Validate(schedule)
		for _, warning := range result.Warnings {
			logger.WithField("file", path).Warn(warning)
		}
		if !result.Valid() {
			logger.WithField("file", path).Errorf(
				"Skipping invalid schedule %q: %s", schedule.Metadata.Name, strings.Join(result.Errors, "; "),
			)
			continue
		}

		schedules = append(schedules, schedule)
		logger.WithResource(schedule.Spec.Target.Key().String()).Infof(
			"Loaded schedule %q (%d rules)", schedule.Metadata.Name, len(schedule.Spec.Rules),
		)
	}

	return schedules, nil
}

func applyDefaults(schedule *models.ScalingSchedule) {
	if schedule.Spec.Target.Namespace == "" {
		schedule.Spec.Target.Namespace = "default"
	}
	for i := range schedule.Spec.Rules {
		if schedule.Spec.Rules[i].Timezone == "" {
			schedule.Spec.Rules[i].Timezone = "UTC"
		}
	}
}
