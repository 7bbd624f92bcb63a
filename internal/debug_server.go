// Package internal hosts the development-only Badger inspector. It is
// mounted by the server when debug logging is enabled and must never be
// exposed on the public port.
package internal

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/render"
)

const maxDetailLength = 120

type InspectRow struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
	Detail   string `json:"detail"`
	Size     int    `json:"size"`
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type inspectPage struct {
	Prefix string         `json:"prefix"`
	Stats  map[string]any `json:"stats,omitempty"`
	Items  []InspectRow   `json:"items"`
}

// StartDebugServer serves a raw key/value view of the database on a
// dedicated port. The prefix query parameter scopes the scan, e.g.
// /inspect?prefix=comment: lists the stored comments.
func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	if mapper == nil {
		mapper = DefaultMapper
	}

	mux := http.NewServeMux()
	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "post:"
		}

		page := inspectPage{Prefix: prefix}
		if statsProvider != nil {
			page.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					page.Items = append(page.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		render.JSON(w, r, page)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("localhost:%d", port), mux)
	}()
}

// DefaultMapper understands the "namespace:entity[:suffix]" key scheme
// shared by every repository and previews JSON values verbatim.
func DefaultMapper(key string, val []byte) InspectRow {
	row := InspectRow{Key: key, Type: "RAW", Size: len(val)}

	parts := strings.SplitN(key, ":", 3)
	if len(parts) >= 2 {
		row.Type = strings.ToUpper(parts[0])
		row.EntityID = parts[1]
	}

	if utf8.Valid(val) {
		detail := string(val)
		if len(detail) > maxDetailLength {
			detail = detail[:maxDetailLength] + "..."
		}
		row.Detail = detail
	}
	return row
}
