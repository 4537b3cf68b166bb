package badger

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// VariableFile is one [section] in a variables TOML file:
//
//	[gemini_api_key]
//	value = "..."
//	description = "Gemini API key"
type VariableFile struct {
	Value       string `toml:"value"`
	Description string `toml:"description"`
}

// loadStats accumulates results across variable sources
type loadStats struct {
	loaded  int
	skipped int
	errors  int
}

func (s *loadStats) add(o loadStats) {
	s.loaded += o.loaded
	s.skipped += o.skipped
	s.errors += o.errors
}

// LoadVariablesFromFiles seeds the KV store from files in the given
// directory. A .env file loads first, then variables.toml, then any
// additional .toml files from a variables/ subdirectory, so later
// sources override earlier ones.
func (m *Manager) LoadVariablesFromFiles(ctx context.Context, dirPath string) error {
	m.logger.Debug().Str("dir", dirPath).Msg("Loading variables from files")

	if err := m.LoadEnvFile(ctx, filepath.Join(dirPath, ".env")); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	var stats loadStats

	variablesFile := filepath.Join(dirPath, "variables.toml")
	if _, err := os.Stat(variablesFile); err == nil {
		stats.add(m.loadVariablesFromFile(ctx, variablesFile))
	} else {
		m.logger.Debug().Str("file", variablesFile).Msg("variables.toml not found in directory, checking subdirectory")
	}

	variablesDir := filepath.Join(dirPath, "variables")
	if info, err := os.Stat(variablesDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(variablesDir)
		if err != nil {
			m.logger.Warn().Err(err).Str("dir", variablesDir).Msg("Failed to read variables directory")
			stats.errors++
		} else {
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
					continue
				}
				stats.add(m.loadVariablesFromFile(ctx, filepath.Join(variablesDir, entry.Name())))
			}
		}
	}

	m.logger.Debug().
		Int("loaded", stats.loaded).
		Int("skipped", stats.skipped).
		Int("errors", stats.errors).
		Msg("Finished loading variables from files")

	return nil
}

// loadVariablesFromFile upserts every section of one variables TOML file
func (m *Manager) loadVariablesFromFile(ctx context.Context, filePath string) loadStats {
	var stats loadStats

	content, err := os.ReadFile(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to read variable file")
		stats.errors++
		return stats
	}

	var variables map[string]VariableFile
	if err := toml.Unmarshal(content, &variables); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse variable file")
		stats.errors++
		return stats
	}

	fileName := filepath.Base(filePath)
	for key, variable := range variables {
		if variable.Value == "" {
			m.logger.Warn().Str("file", fileName).Str("key", key).Msg("Skipping variable with empty value")
			stats.skipped++
			continue
		}

		description := variable.Description
		if description == "" {
			description = "Loaded from " + fileName
		}

		isNew, err := m.kv.Upsert(ctx, key, variable.Value, description)
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable")
			stats.errors++
			continue
		}

		if isNew {
			m.logger.Debug().Str("key", key).Str("file", fileName).Msg("Loaded new variable")
		} else {
			m.logger.Debug().Str("key", key).Str("file", fileName).Msg("Updated existing variable")
		}
		stats.loaded++
	}

	return stats
}
