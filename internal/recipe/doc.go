// Package recipe implements the transactional configuration store.
//
// The Service owns the full rig.Recipes aggregate behind one exclusive
// lock. Every mutation (add/remove/duplicate/activate, device edits)
// validates against the DeviceActions collaborator before committing;
// commits persist recipes.json under the recipe root, journal the
// transaction and notify subscribers. Validation is all-or-nothing: a
// single failing device rejects the whole change and the caller gets the
// original candidate back, unmodified.
//
// Import and export stream the aggregate plus the per-device file tree
// through the EntryReader/EntryWriter abstractions (zip adapters
// included). Imports operate on a working copy, resolve id conflicts
// through a pluggable merge strategy (Unspecified, Duplicate, Replace)
// and take the exclusive lock only for the final swap. Filesystem
// reconciliation after the in-memory commit is the one place errors are
// irreversible rather than retryable; those are marked ErrIrreversible.
package recipe
