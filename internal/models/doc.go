// Package models defines persistent entities and repository interfaces for spotcanvas.
//
// Persistent entities:
//   - [PersistedCanvas] : A fetched canvas cached by track URI
//   - [FetchLog] : The outcome of one canvas lookup
//
// Entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
