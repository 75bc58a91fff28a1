package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"churn-dashboard/internal/dataset"
	"churn-dashboard/internal/models"
)

const (
	DefaultSampleSeed uint64 = 42

	cardTotalExited      = "Total exited"
	cardFemalesExited    = "Females who exited"
	cardInactiveExited   = "Inactive members who exited"
	genderFemale         = "Female"
	activityLabelActive  = "Active"
	activityLabelStopped = "Inactive"
)

var ErrNotLoaded = errors.New("dataset not loaded")

var (
	colorTotal    = models.RGB{255, 49, 49}
	colorFemales  = models.RGB{251, 158, 119}
	colorInactive = models.RGB{168, 101, 201}
)

type Option func(*Churn)

func WithSampleSeed(seed uint64) Option {
	return func(c *Churn) { c.seed = seed }
}

// WithCache stores computed summaries under dir.
func WithCache(dir string) Option {
	return func(c *Churn) { c.cacheDir = dir }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Churn) { c.logger = logger }
}

type Churn struct {
	mu       sync.RWMutex
	frame    *dataset.Frame
	summary  *models.Summary
	csvPath  string
	seed     uint64
	cacheDir string

	recordsProcessed atomic.Int64
	reloads          atomic.Int64
	logger           *slog.Logger
}

func NewChurn(opts ...Option) *Churn {
	c := &Churn{
		summary: &models.Summary{},
		seed:    DefaultSampleSeed,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetData replaces the dataset with in-memory customers.
func (c *Churn) SetData(customers []models.Customer) error {
	frame := dataset.FromCustomers(customers)
	summary, err := c.computeSummary(context.Background(), frame)
	if err != nil {
		return fmt.Errorf("compute summary: %w", err)
	}
	c.swap(frame, summary)
	return nil
}

func (c *Churn) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()
	c.logger.Info("processing CSV file", "filename", filename)

	frame, stats, err := dataset.Load(ctx, filename)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	if stats.Dropped > 0 {
		c.logger.Warn("skipped invalid rows", "filename", filename, "dropped", stats.Dropped)
	}

	c.mu.Lock()
	c.csvPath = filename
	c.mu.Unlock()

	summary, err := c.cachedSummary(filename, frame.Len())
	if err != nil {
		summary, err = c.computeSummary(ctx, frame)
		if err != nil {
			return fmt.Errorf("compute summary: %w", err)
		}
		if c.cacheDir != "" {
			if err := c.saveToCache(filename, summary); err != nil {
				c.logger.Warn("failed to save cache", "error", err)
			}
		}
	} else {
		c.logger.Info("loaded summary from cache", "records", summary.Records)
	}

	c.swap(frame, summary)

	duration := time.Since(start)
	c.logger.Info("csv processing complete",
		"records", frame.Len(),
		"total_exited", summary.TotalExited,
		"duration", duration,
	)
	return nil
}

// Reload reads the current CSV file again.
func (c *Churn) Reload(ctx context.Context) error {
	c.mu.RLock()
	path := c.csvPath
	c.mu.RUnlock()

	if path == "" {
		return ErrNotLoaded
	}
	if err := c.LoadFromCSV(ctx, path); err != nil {
		return err
	}
	c.reloads.Add(1)
	return nil
}

func (c *Churn) cachedSummary(filename string, records int) (*models.Summary, error) {
	if c.cacheDir == "" {
		return nil, errors.New("cache disabled")
	}

	cached, err := c.loadFromCache(filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filename)
	if err != nil {
		return nil, err
	}
	if !info.ModTime().Before(cached.LoadedAt) || cached.Records != int64(records) {
		return nil, errors.New("cache stale")
	}
	return cached, nil
}

func (c *Churn) swap(frame *dataset.Frame, summary *models.Summary) {
	c.mu.Lock()
	c.frame = frame
	c.summary = summary
	c.mu.Unlock()
	c.recordsProcessed.Store(int64(frame.Len()))
}

func (c *Churn) current() (*dataset.Frame, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.frame == nil {
		return nil, ErrNotLoaded
	}
	return c.frame, nil
}

// computeSummary runs the card and bar-chart aggregations concurrently.
func (c *Churn) computeSummary(ctx context.Context, frame *dataset.Frame) (*models.Summary, error) {
	sample := frame.BalancedSample(rand.New(rand.NewPCG(c.seed, c.seed)))
	if err := sample.Err(); err != nil {
		return nil, fmt.Errorf("balanced sample: %w", err)
	}

	summary := &models.Summary{
		Records:    int64(frame.Len()),
		SampleSize: sample.Len(),
		LoadedAt:   time.Now(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary.TotalExited = int(frame.Sum(dataset.ColExited))
		return nil
	})

	g.Go(func() error {
		females := sample.WhereEq(dataset.ColGender, genderFemale)
		if err := females.Err(); err != nil {
			return fmt.Errorf("female exit rate: %w", err)
		}
		summary.FemaleExitRate = females.Mean(dataset.ColExited)
		return nil
	})

	g.Go(func() error {
		inactive := sample.WhereEq(dataset.ColActive, 0)
		if err := inactive.Err(); err != nil {
			return fmt.Errorf("inactive exit rate: %w", err)
		}
		summary.InactiveExitRate = inactive.Mean(dataset.ColExited)
		return nil
	})

	g.Go(func() error {
		shares, err := exitShares(ctx, frame, dataset.ColGender, nil)
		if err != nil {
			return fmt.Errorf("gender exits: %w", err)
		}
		summary.GenderExits = shares
		return nil
	})

	g.Go(func() error {
		shares, err := exitShares(ctx, frame, dataset.ColActive, activityLabel)
		if err != nil {
			return fmt.Errorf("activity exits: %w", err)
		}
		summary.ActivityExits = shares
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.Cards = []models.Card{
		{Title: cardTotalExited, Value: fmt.Sprintf("%d", summary.TotalExited), Color: colorTotal},
		{Title: cardFemalesExited, Value: formatPercent(summary.FemaleExitRate), Color: colorFemales},
		{Title: cardInactiveExited, Value: formatPercent(summary.InactiveExitRate), Color: colorInactive},
	}
	return summary, nil
}

// exitShares is a normalized value count of Exited within each group.
// Zero-count rows are omitted.
func exitShares(ctx context.Context, frame *dataset.Frame, groupCol string, label func(string) string) ([]models.ExitShare, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups, err := frame.MeanBy(groupCol, dataset.ColExited)
	if err != nil {
		return nil, err
	}

	shares := make([]models.ExitShare, 0, len(groups)*2)
	for _, g := range groups {
		name := g.Key
		if label != nil {
			name = label(g.Key)
		}
		exited := int(math.Round(g.Mean * float64(g.Count)))
		if stayed := g.Count - exited; stayed > 0 {
			shares = append(shares, models.ExitShare{Group: name, Exited: false, Share: 1 - g.Mean, Count: stayed})
		}
		if exited > 0 {
			shares = append(shares, models.ExitShare{Group: name, Exited: true, Share: g.Mean, Count: exited})
		}
	}
	return shares, nil
}

func activityLabel(key string) string {
	switch key {
	case "1":
		return activityLabelActive
	case "0":
		return activityLabelStopped
	}
	return key
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}

// GeographyRates resolves the selection and returns the mean exit rate per
// geography over the matching rows, ordered by geography.
func (c *Churn) GeographyRates(ctx context.Context, sel models.Selection) ([]models.GeographyRate, Filter, error) {
	filter, err := ResolveFilter(sel)
	if err != nil {
		return nil, Filter{}, err
	}

	frame, err := c.current()
	if err != nil {
		return nil, filter, err
	}
	if err := ctx.Err(); err != nil {
		return nil, filter, err
	}

	view := filter.Apply(frame)
	if err := view.Err(); err != nil {
		return nil, filter, fmt.Errorf("apply filter: %w", err)
	}

	groups, err := view.MeanBy(dataset.ColGeography, dataset.ColExited)
	if err != nil {
		return nil, filter, fmt.Errorf("geography rates: %w", err)
	}

	rates := make([]models.GeographyRate, len(groups))
	for i, g := range groups {
		rates[i] = models.GeographyRate{Geography: g.Key, Rate: g.Mean, Customers: g.Count}
	}
	return rates, filter, nil
}

func (c *Churn) Summary() models.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.summary
}

func (c *Churn) GenderExits() []models.ExitShare {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary.GenderExits
}

func (c *Churn) ActivityExits() []models.ExitShare {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary.ActivityExits
}

// Options lists the dropdown values offered by the filter bar.
func (c *Churn) Options() models.FilterOptions {
	return models.FilterOptions{
		Genders:   genderOptions,
		Activity:  activityOptions,
		AgeGroups: ageGroupOptions,
	}
}

// Utility method for monitoring
func (c *Churn) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]any{
		"record_count": c.summary.Records,
		"loaded_at":    c.summary.LoadedAt,
		"sample_size":  c.summary.SampleSize,
		"total_exited": c.summary.TotalExited,
		"csv_file":     c.csvPath,
		"sample_seed":  c.seed,
		"reloads":      c.reloads.Load(),
		"records_seen": c.recordsProcessed.Load(),
	}
}
