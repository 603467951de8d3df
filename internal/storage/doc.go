// Package storage persists users, reminders and integration records in
// a local SQLite database.
package storage
