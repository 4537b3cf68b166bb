package badger

import (
	"bufio"
	"context"
	"os"
	"strings"
)

// LoadEnvFile seeds the KV store from a .env file. Lines are KEY=value
// with optional single or double quoting on the value; blank lines and
// # comments are skipped. A missing file is not an error, and parse
// problems are logged per line rather than aborting the load.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		m.logger.Debug().Str("file", filePath).Msg("No .env file, skipping")
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to open .env file")
		return nil
	}
	defer file.Close()

	loaded := 0
	skipped := 0

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := parseEnvLine(line)
		if !ok {
			m.logger.Warn().
				Str("file", filePath).
				Int("line", lineNum).
				Msg("Skipping malformed .env line")
			skipped++
			continue
		}

		if _, err := m.kv.Upsert(ctx, key, value, "Loaded from .env file"); err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store .env variable")
			skipped++
			continue
		}
		loaded++
	}

	if err := scanner.Err(); err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Error reading .env file")
	}

	m.logger.Debug().
		Str("file", filePath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Msg("Loaded variables from .env file")

	return nil
}

// parseEnvLine splits one KEY=value line, stripping matched quotes from
// the value. Lines without =, with an empty key or with an empty value
// report ok=false.
func parseEnvLine(line string) (key, value string, ok bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}

	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			value = value[1 : len(value)-1]
		}
	}

	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}
