// Package testutil provides shared test helpers: well-formed document
// builders, a capturing consumer, and mock collaborators for transport and
// storage.
package testutil
