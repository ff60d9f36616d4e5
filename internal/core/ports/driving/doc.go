// Package driving defines the interfaces external actors (the CLI and
// the chat shell) use to operate the engine. These are the "driving"
// ports in hexagonal architecture terminology - they drive the
// application.
//
// Implementations of these interfaces live in internal/core/services.
package driving
