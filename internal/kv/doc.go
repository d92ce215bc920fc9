// Package kv is the durable key/value primitive under the schedule store.
//
// It plays the role flash preferences play on the device: a small namespaced
// map of keys to values that survives power cycles. Two backends exist:
//
//   - "sqlite": a SQLite database file; every Put is durable on return.
//   - "file":   an in-memory map snapshotted to a JSON file; durability is
//     established by Flush(), which writes via temp-file + rename so a crash
//     mid-write never leaves a torn snapshot.
package kv
