// Package storex serves configuration stored in a database table.
//
// # Overview
//
// storex keeps properties as rows of a name/value table managed through
// GORM. A TableSource loads the table into memory, serves it as a
// sourcex.StringSource, and raises a change event whenever a reload finds
// different content.
//
// # Features
//
//   - SQLite connections with pooled sql.DB and query logging through core/log
//   - Read-only access to a name/value table, configurable table name
//   - Polling refresh that keeps the last good snapshot on failure
//   - Health check usable with runtimex
//
// # Usage
//
//	db, _ := storex.OpenSQLite("file:config.db", logger)
//	src, _ := storex.NewTableSource(db, storex.Options{Name: "db"})
//	if err := src.Refresh(ctx); err != nil { return err }
//	go src.Watch(ctx, 10*time.Second)
//
// # Layer
//
// storex is an auxiliary module and depends on sourcex and GORM.
//
// # Stability
//
// Experimental until v0.1.0.
package storex
