// Package settings is the process-wide settings store shared by every view of
// the workflow (HTTP API, event stream, CLI).
//
// # Lifecycle
//
// A Store is constructed once per process with New. It starts from Defaults,
// overlays the snapshot returned by its Persister (if present and parseable),
// and then serves copies of the current snapshot through Get. Mutations go
// through Update, Replace, Apply, Set or Reset; each one publishes the new
// snapshot to subscribers and then persists it.
//
// # Merge rules
//
// Update hands the updater a copy of the current record; whatever it returns
// becomes the record. Editing a field in place keeps every other field:
//
//	store.Update(func(s settings.Settings) settings.Settings {
//	    s.Experiment.RandomSeed = 7
//	    return s
//	})
//
// Apply takes a JSON object and changes only the leaf fields it names:
//
//	store.Apply([]byte(`{"reporting":{"format":"pdf"}}`))
//
// # Persistence
//
// Persister failures are never returned to callers. They are reported to the
// Observer and the in-memory snapshot stays authoritative. The persisted form
// is the JSON encoding of Settings under StorageKey.
//
// # Subscriptions
//
// Subscribe returns a channel that holds at most one snapshot. A newer
// snapshot replaces an unread one, so readers always see the latest state
// and publishers never block.
package settings
