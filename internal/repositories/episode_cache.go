package repositories

import (
	"fmt"
	"strings"

	"github.com/Magniswerfer/Podhaven-sub000/internal/models"
)

// EpisodeCacheAdapter implements tasks.EpisodeCacher using EpisodeRepository.
//
// Provides episode materialization with deduplication via the
// (subscription, GUID) constraint. Entries already present keep their
// playback state untouched (constraint violations are silently ignored).
type EpisodeCacheAdapter struct {
	repo *EpisodeRepository
}

// NewEpisodeCacheAdapter creates a new EpisodeCacheAdapter with the given repository
func NewEpisodeCacheAdapter(repo *EpisodeRepository) *EpisodeCacheAdapter {
	return &EpisodeCacheAdapter{repo: repo}
}

// CacheEpisode materializes a feed entry for a subscription.
// Returns true when a new row was created, false when the entry already existed.
// Only returns errors for actual failures (not constraint violations).
func (a *EpisodeCacheAdapter) CacheEpisode(subscriptionID string, entry models.FeedEpisode) (bool, error) {
	existing, err := a.repo.GetByGUID(subscriptionID, entry.GUID)
	if err == nil && existing != nil {
		return false, nil
	}

	episode := models.NewEpisode(0, subscriptionID, entry)

	err = a.repo.Create(episode)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return false, nil
		}
		return false, fmt.Errorf("failed to cache episode: %w", err)
	}

	return true, nil
}
