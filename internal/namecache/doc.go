// Package namecache remembers display names per device instance id.
//
// The cache is bounded (four names per possible target monitor by default)
// and evicts the records with the oldest LastWriteTime first. It is fed
// from the live registry at discrete checkpoints and written through a
// Store; SQLiteStore keeps it in the known_monitors table.
//
//	cache, err := namecache.Open(ctx, namecache.NewSQLiteStore(db), cfg.Monitors.MaxNameCount())
//	...
//	if cache.RecordObservedNames(observed) {
//	    err = store.Save(ctx, cache.Snapshot())
//	}
package namecache
