package dataset

import (
	"fmt"

	"github.com/martin/carsight/internal/config"
)

// NewSource creates a dataset Source based on the configured driver.
func NewSource(cfg *config.DatasetConfig) (Source, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalSource(cfg.Path), nil
	case "http":
		return NewHTTPSource(cfg.URL), nil
	case "s3":
		return NewS3Source(&cfg.S3)
	default:
		return nil, fmt.Errorf("unknown dataset driver %q", cfg.Driver)
	}
}
