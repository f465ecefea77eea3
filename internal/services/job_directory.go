package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/models"
)

// JobSummary is the slice of a job the application lifecycle depends on:
// its owner for authorization and its title for notification text.
type JobSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Company   string `json:"company,omitempty"`
	Location  string `json:"location,omitempty"`
	CreatedBy string `json:"createdBy"`
}

// JobDirectory resolves jobs by id. Implementations return ErrJobNotFound for
// unknown ids.
type JobDirectory interface {
	Lookup(ctx context.Context, jobID string) (*JobSummary, error)
}

// GormJobDirectory reads jobs straight from the database.
type GormJobDirectory struct {
	db *gorm.DB
}

// NewGormJobDirectory constructs a GormJobDirectory.
func NewGormJobDirectory(db *gorm.DB) (*GormJobDirectory, error) {
	if db == nil {
		return nil, errors.New("job directory: db is required")
	}
	return &GormJobDirectory{db: db}, nil
}

// Lookup implements JobDirectory.
func (d *GormJobDirectory) Lookup(ctx context.Context, jobID string) (*JobSummary, error) {
	ctx = ensureContext(ctx)
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ErrJobNotFound
	}

	var job models.Job
	if err := d.db.WithContext(ctx).
		Select("id", "title", "company", "location", "created_by").
		First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job directory: load job: %w", err)
	}

	return &JobSummary{
		ID:        job.ID,
		Title:     job.Title,
		Company:   job.Company,
		Location:  job.Location,
		CreatedBy: job.CreatedBy,
	}, nil
}

// CachedJobDirectory memoises lookups of another JobDirectory. Misses are not
// cached so newly posted jobs become visible immediately.
type CachedJobDirectory struct {
	next  JobDirectory
	cache *gocache.Cache
}

// NewCachedJobDirectory wraps next with an in-memory cache expiring after ttl.
func NewCachedJobDirectory(next JobDirectory, ttl time.Duration) *CachedJobDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedJobDirectory{next: next, cache: gocache.New(ttl, 2*ttl)}
}

// Lookup implements JobDirectory.
func (c *CachedJobDirectory) Lookup(ctx context.Context, jobID string) (*JobSummary, error) {
	if value, found := c.cache.Get(jobID); found {
		summary := value.(JobSummary)
		return &summary, nil
	}

	summary, err := c.next.Lookup(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(jobID, *summary)
	return summary, nil
}

// Invalidate drops a cached entry, e.g. after the job changed owner or title.
func (c *CachedJobDirectory) Invalidate(jobID string) {
	c.cache.Delete(jobID)
}

// invalidateJob forgets jobID in directories that cache lookups.
func invalidateJob(jobs JobDirectory, jobID string) {
	if cached, ok := jobs.(interface{ Invalidate(jobID string) }); ok {
		cached.Invalidate(jobID)
	}
}
