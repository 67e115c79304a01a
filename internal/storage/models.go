package storage

import (
	"time"

	"gorm.io/gorm"
)

// DailyRental is one row of the imported dataset. ID order is file order.
type DailyRental struct {
	gorm.Model
	Source string    `gorm:"index" json:"source"`
	Date   time.Time `gorm:"index" json:"date"`

	// Rentals
	TotalCount      int64 `json:"cnt"`
	RegisteredCount int64 `json:"registered"`
	CasualCount     int64 `json:"casual"`

	// Weather
	Temperature          float64 `json:"temp_actual"`
	FeelsLikeTemperature float64 `json:"atemp_actual"`
}

// DatasetImport logs every replacement of the stored table.
type DatasetImport struct {
	gorm.Model
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	ImportedAt time.Time `gorm:"index" json:"imported_at"`
}
