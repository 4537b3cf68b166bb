// -----------------------------------------------------------------------
// Last Modified: Wednesday, 15th April 2026 02:10:44 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
	"github.com/ternarybob/claimlens/internal/models"
)

const (
	promptOverridePrefix = "prompt:"
	promptGroup          = "prompts"
	defaultCacheTTL      = time.Hour
)

// Service resolves prompts and grouped parameters across three layers:
// YAML seeds loaded at startup, KV-store overrides, and the remote
// configuration service. Later layers win. Remote lookups are cached
// per key for the configured TTL.
type Service struct {
	config *common.Config
	kv     interfaces.KeyValueStorage
	remote *remoteClient
	logger arbor.ILogger

	seeds map[string]*models.PromptDefinition

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL time.Duration
}

type cacheEntry struct {
	value     string
	found     bool
	fetchedAt time.Time
}

// NewService loads prompt seeds and prepares the remote client when enabled.
func NewService(cfg *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*Service, error) {
	seeds, err := loadSeeds(cfg.Prompts.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt seeds: %w", err)
	}

	s := &Service{
		config:   cfg,
		kv:       kvStorage,
		logger:   logger,
		seeds:    seeds,
		cache:    make(map[string]cacheEntry),
		cacheTTL: defaultCacheTTL,
	}

	if cfg.Remote.Enabled {
		if cfg.Remote.BaseURL == "" || cfg.Remote.TokenURL == "" {
			return nil, fmt.Errorf("remote config enabled but base_url or token_url is empty")
		}
		s.remote = newRemoteClient(&cfg.Remote, logger)
		if ttl, err := time.ParseDuration(cfg.Remote.CacheTTL); err == nil && ttl > 0 {
			s.cacheTTL = ttl
		}
		logger.Info().Str("base_url", cfg.Remote.BaseURL).Dur("cache_ttl", s.cacheTTL).Msg("Remote config client enabled")
	}

	return s, nil
}

// GetPrompt resolves a prompt definition by name. The seed supplies the
// description and parameter schema; the template may be replaced by a KV
// override ("prompt:{name}") or the remote config service.
func (s *Service) GetPrompt(ctx context.Context, name string) (*models.PromptDefinition, error) {
	def := &models.PromptDefinition{Name: name}
	if seed, ok := s.seeds[name]; ok {
		copied := *seed
		def = &copied
	}

	if override, err := s.kv.Get(ctx, promptOverridePrefix+name); err == nil && override != "" {
		def.Template = override
	} else if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		s.logger.Warn().Err(err).Str("prompt", name).Msg("Failed to read prompt override from KV store")
	}

	if remoteTemplate, err := s.remoteValue(ctx, promptGroup, name); err == nil && remoteTemplate != "" {
		def.Template = remoteTemplate
	}

	if def.Template == "" {
		return nil, fmt.Errorf("prompt %s: %w", name, interfaces.ErrKeyNotFound)
	}

	return def, nil
}

// GetValue resolves a grouped parameter. KV overrides ("{group}:{key}")
// beat nothing; the remote config service beats both.
func (s *Service) GetValue(ctx context.Context, group string, key string) (string, error) {
	value := ""
	found := false

	if kvValue, err := s.kv.Get(ctx, group+":"+key); err == nil && kvValue != "" {
		value = kvValue
		found = true
	} else if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		s.logger.Warn().Err(err).Str("group", group).Str("key", key).Msg("Failed to read config value from KV store")
	}

	if remoteVal, err := s.remoteValue(ctx, group, key); err == nil && remoteVal != "" {
		value = remoteVal
		found = true
	}

	if !found {
		return "", fmt.Errorf("config value not found: %s:%s", group, key)
	}

	return value, nil
}

// remoteValue fetches a remote parameter through the per-key cache.
// Misses are cached alongside hits so absent keys do not trigger a
// request on every resolution. A disabled remote reports not found.
func (s *Service) remoteValue(ctx context.Context, group, key string) (string, error) {
	if s.remote == nil {
		return "", errRemoteNotFound
	}

	cacheKey := group + ":" + key

	s.mu.RLock()
	entry, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < s.cacheTTL {
		if !entry.found {
			return "", errRemoteNotFound
		}
		return entry.value, nil
	}

	value, err := s.remote.Fetch(ctx, group, key)
	if err != nil {
		if errors.Is(err, errRemoteNotFound) {
			s.storeCache(cacheKey, "", false)
			return "", errRemoteNotFound
		}
		s.logger.Warn().Err(err).Str("group", group).Str("key", key).Msg("Remote config fetch failed")
		// Serve the expired entry rather than failing resolution.
		if ok && entry.found {
			return entry.value, nil
		}
		return "", err
	}

	s.storeCache(cacheKey, value, true)
	return value, nil
}

func (s *Service) storeCache(key, value string, found bool) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{value: value, found: found, fetchedAt: time.Now()}
	s.mu.Unlock()
}

// InvalidateCache drops all cached remote values, forcing the next
// resolution of each key to hit the remote service.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()
	s.logger.Debug().Msg("Config cache invalidated")
}

// Close releases service resources.
func (s *Service) Close() error {
	return nil
}
