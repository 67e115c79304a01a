package storage

import (
	"errors"
	"fmt"
	"time"

	"bikeshare-dashboard/internal/rentals"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const insertBatchSize = 500

var ErrEmpty = errors.New("no rentals stored")

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&DailyRental{}, &DatasetImport{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// ReplaceTable swaps the stored dataset for table in one transaction and
// logs the import.
func (d *Database) ReplaceTable(source string, table rentals.Table) error {
	rows := make([]DailyRental, len(table))
	for i, rec := range table {
		rows[i] = DailyRental{
			Source:               source,
			Date:                 rec.Date,
			TotalCount:           rec.TotalCount,
			RegisteredCount:      rec.RegisteredCount,
			CasualCount:          rec.CasualCount,
			Temperature:          rec.Temperature,
			FeelsLikeTemperature: rec.FeelsLikeTemperature,
		}
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		// Unscoped: soft-deleted rows would pile up on every reload.
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Unscoped().
			Delete(&DailyRental{}).Error; err != nil {
			return fmt.Errorf("failed to clear rentals: %w", err)
		}

		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert rentals: %w", err)
			}
		}

		entry := &DatasetImport{
			Source:     source,
			Rows:       len(rows),
			ImportedAt: time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to log import: %w", err)
		}
		return nil
	})
}

// LoadTable returns the stored dataset in the order it was imported.
func (d *Database) LoadTable() (rentals.Table, error) {
	var rows []DailyRental
	result := d.db.Order("id asc").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	table := make(rentals.Table, len(rows))
	for i, row := range rows {
		table[i] = rentals.Record{
			Date:                 rentals.Day(row.Date),
			TotalCount:           row.TotalCount,
			RegisteredCount:      row.RegisteredCount,
			CasualCount:          row.CasualCount,
			Temperature:          row.Temperature,
			FeelsLikeTemperature: row.FeelsLikeTemperature,
		}
	}
	return table, nil
}

func (d *Database) CountRentals() (int64, error) {
	var count int64
	result := d.db.Model(&DailyRental{}).Count(&count)
	return count, result.Error
}

// DateBounds returns the earliest and latest stored dates.
func (d *Database) DateBounds() (rentals.DateRange, error) {
	count, err := d.CountRentals()
	if err != nil {
		return rentals.DateRange{}, err
	}
	if count == 0 {
		return rentals.DateRange{}, ErrEmpty
	}

	var earliest, latest DailyRental
	if err := d.db.Order("date asc").First(&earliest).Error; err != nil {
		return rentals.DateRange{}, err
	}
	if err := d.db.Order("date desc").First(&latest).Error; err != nil {
		return rentals.DateRange{}, err
	}
	return rentals.NewDateRange(earliest.Date, latest.Date), nil
}

func (d *Database) LastImport() (*DatasetImport, error) {
	var entry DatasetImport
	result := d.db.Order("id desc").First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEmpty
		}
		return nil, result.Error
	}
	return &entry, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
