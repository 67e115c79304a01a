package weather

import (
	"context"
	"time"
)

type Provider interface {
	Get(ctx context.Context) (*Data, error)
}

// Data is the current observation used to evaluate the rental trend lines.
type Data struct {
	Provider    string    `json:"provider"`
	Temperature float64   `json:"temperature_c"`
	FeelsLike   float64   `json:"feels_like_c"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observed_at"`
}
