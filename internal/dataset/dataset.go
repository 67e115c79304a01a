package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bikeshare-dashboard/internal/loader"
	"bikeshare-dashboard/internal/rentals"

	"github.com/go-co-op/gocron"
)

var ErrNotLoaded = errors.New("dataset not loaded")

// Store persists the last imported table.
type Store interface {
	ReplaceTable(source string, table rentals.Table) error
	LoadTable() (rentals.Table, error)
}

// Publisher receives the full-range dashboard after every reload.
type Publisher interface {
	Publish(d *rentals.Dashboard) error
}

// Dataset caches the full table. Readers get the immutable slice; a reload
// swaps it in one step.
type Dataset struct {
	path      string
	store     Store
	publisher Publisher
	interval  time.Duration
	scheduler *gocron.Scheduler

	mu       sync.RWMutex
	table    rentals.Table
	loadedAt time.Time
	loaded   bool
}

type DatasetConfig struct {
	Path           string
	Store          Store
	Publisher      Publisher
	ReloadInterval time.Duration
}

func New(cfg DatasetConfig) *Dataset {
	return &Dataset{
		path:      cfg.Path,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		interval:  cfg.ReloadInterval,
	}
}

// Start loads the dataset once and, when an interval is configured,
// schedules periodic reloads until ctx is done. If the CSV cannot be read
// at startup the last stored table is used instead.
func (d *Dataset) Start(ctx context.Context) error {
	if err := d.Reload(ctx); err != nil {
		log.Printf("Error loading dataset from %s: %v", d.path, err)
		if restoreErr := d.Restore(); restoreErr != nil {
			return fmt.Errorf("no dataset available: %w", errors.Join(err, restoreErr))
		}
		log.Printf("Using stored dataset (%d rows)", len(d.Table()))
	}

	if d.interval <= 0 {
		return nil
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	_, err := scheduler.Every(d.interval).WaitForSchedule().Do(func() {
		if err := d.Reload(ctx); err != nil {
			log.Printf("Scheduled reload failed, keeping previous dataset: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reload: %w", err)
	}

	d.mu.Lock()
	d.scheduler = scheduler
	d.mu.Unlock()

	scheduler.StartAsync()
	log.Printf("Dataset reload scheduled every %s", d.interval)

	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return nil
}

// Reload reads the CSV, stores it and replaces the cached table. The cache
// is left untouched on any error.
func (d *Dataset) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	table, err := loader.LoadFile(d.path)
	if err != nil {
		return err
	}

	if d.store != nil {
		if err := d.store.ReplaceTable(d.path, table); err != nil {
			return fmt.Errorf("failed to store dataset: %w", err)
		}
	}

	d.swap(table)
	log.Printf("Dataset loaded: %d rows from %s", len(table), d.path)

	d.publish(table)
	return nil
}

// Restore fills the cache from the store without reading the CSV.
func (d *Dataset) Restore() error {
	if d.store == nil {
		return ErrNotLoaded
	}

	table, err := d.store.LoadTable()
	if err != nil {
		return fmt.Errorf("failed to load stored dataset: %w", err)
	}
	if len(table) == 0 {
		return ErrNotLoaded
	}

	d.swap(table)
	return nil
}

func (d *Dataset) swap(table rentals.Table) {
	d.mu.Lock()
	d.table = table
	d.loadedAt = time.Now()
	d.loaded = true
	d.mu.Unlock()
}

func (d *Dataset) publish(table rentals.Table) {
	if d.publisher == nil {
		return
	}
	bounds, ok := table.Bounds()
	if !ok {
		return
	}

	dashboard := rentals.Build(table, bounds)
	if err := d.publisher.Publish(&dashboard); err != nil {
		log.Printf("Error publishing summary: %v", err)
	}
}

func (d *Dataset) Table() rentals.Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.table
}

func (d *Dataset) LoadedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadedAt
}

func (d *Dataset) IsLoaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

func (d *Dataset) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler != nil {
		d.scheduler.Stop()
		d.scheduler = nil
	}
}
