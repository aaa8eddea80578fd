package repository

import (
	"context"
	"fmt"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/repository/mongo"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

// Open picks a backend from the URL scheme: mongodb:// and mongodb+srv://
// use MongoDB, anything else is handed to the SQLite/libsql driver.
func Open(ctx context.Context, databaseURL, databaseName string) (ports.Repository, error) {
	if mongo.IsMongoURL(databaseURL) {
		repo, err := mongo.NewMongoRepository(ctx, databaseURL, databaseName)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return repo, nil
	}

	repo, err := sqlite.NewSQLiteRepository(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return repo, nil
}
