// Package db instantiates the store driver selected by the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/gitrag-ai/gitrag/internal/profile"
	"github.com/gitrag-ai/gitrag/store"
	"github.com/gitrag-ai/gitrag/store/db/postgres"
	"github.com/gitrag-ai/gitrag/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on the profile.
//
// PostgreSQL is the production backend; vector search runs in the database
// through pgvector. SQLite is for development and tests, with similarity
// computed in process.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
