// Package registry provides a small generic, concurrency-safe key/value
// registry.
//
// Its main consumer is the checkpoint package, which keeps the mapping
// from backend names ("memory", "sqlite", ...) to store constructors in
// a Registry so host applications can plug their own persistence
// backends in next to the built-in ones:
//
//	checkpoint.RegisterBackend("dynamo", openDynamoStore)
//
// The type is exported on its own because the pattern (register by name
// at init, resolve by name at runtime) is not specific to checkpoint
// stores.
package registry
