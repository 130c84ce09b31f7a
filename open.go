// open.go

// Package quarry is a typed query and modification algebra over plain Go
// record structs, with pluggable storage backends.
//
// Conditions and modifications are built through generic constructors,
// evaluated in memory, serialized to a stable JSON form, and translated
// by backends into their native query languages. Backends publish
// support matrices; Open wraps every backend with the client-side
// fallback so unsupported operators degrade to fetch-and-filter instead
// of failing.
package quarry

import (
	"fmt"
	"net/url"

	"github.com/solatis/quarry/store"
	"github.com/solatis/quarry/store/memstore"
	"github.com/solatis/quarry/store/sqlstore"
)

// Open connects a named collection behind a storage URL.
// Supported schemes:
//
//	memory://                in-process, full operator support
//	sqlite://path/to/file.db SQL documents, partial pushdown
//	postgres://...           SQL documents, partial pushdown
func Open[R any](storeURL, collection string) (store.Collection[R], error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store URL: %w", err)
	}

	switch u.Scheme {
	case "memory":
		return memstore.New[R](collection), nil
	case "sqlite", "postgres":
		db, err := sqlstore.Open(storeURL)
		if err != nil {
			return nil, err
		}
		c, err := sqlstore.Collection[R](db, collection)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store.WithFallback[R](c), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme: %s (expected memory, sqlite or postgres)", u.Scheme)
	}
}
