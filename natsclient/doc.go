// Package natsclient manages the NATS connection shared by transport
// components. It wraps connection lifecycle, reconnect bookkeeping, and
// JetStream access behind one client so components never hold raw
// connection options.
package natsclient
