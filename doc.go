// Package bltree is an embeddable ordered key-value storage engine: one
// Environment (a file or in-memory arena) holds any number of named
// Btree databases, each keyed by a fixed-width numeric/binary or
// variable-length key type and storing fixed, inline, or blob-spilled
// records.
//
// A typical caller creates or opens an Environment, then creates or
// opens one or more databases inside it:
//
//	env, err := bltree.CreateEnvironment(bltree.EnvironmentConfig{Path: "my.db"})
//	tr, err := env.CreateDatabase(bltree.DatabaseConfig{
//		Name: "widgets", KeyType: bltree.KeyTypeUint64,
//	})
//	err = tr.Insert(key, value, btree.InsertOverwrite)
//	rec, found, err := tr.Find(key)
//
// The on-disk layout, concurrency model, and error taxonomy are
// described in SPEC_FULL.md; the grounding for every package against the
// example corpus this engine was learned from is recorded in DESIGN.md.
package bltree
