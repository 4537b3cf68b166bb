package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/models"
	"gopkg.in/yaml.v3"
)

// loadSeeds reads prompt definition YAML files from dir. Files that fail
// to parse are skipped with a warning so one bad seed cannot block startup.
func loadSeeds(dir string, logger arbor.ILogger) (map[string]*models.PromptDefinition, error) {
	seeds := make(map[string]*models.PromptDefinition)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Warn().Str("dir", dir).Msg("Prompt seed directory does not exist")
		return seeds, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt seed directory: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		filePath := filepath.Join(dir, entry.Name())
		yamlBytes, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read prompt seed file")
			continue
		}

		var def models.PromptDefinition
		if err := yaml.Unmarshal(yamlBytes, &def); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse prompt seed YAML")
			continue
		}

		if def.Name == "" {
			def.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if def.Template == "" {
			logger.Warn().Str("file", entry.Name()).Msg("Prompt seed has no template, skipping")
			continue
		}

		seeds[def.Name] = &def
	}

	logger.Info().Int("count", len(seeds)).Str("dir", dir).Msg("Loaded prompt seeds")
	return seeds, nil
}
