// Package settings provides the persisted (namespace, key) string store.
//
// It backs two things:
//   - the crawl progress record (last feed pub date + per-item
//     "published" markers)
//   - operator-writable values like the notification group list
//
// Drivers:
//   - "file": dependency-free backend (snapshot + append-only journal)
//   - "sqlite": SQLite database file (build with -tags sqlite)
package settings
