// Package node provides the push-based dataflow contract the engine is
// built on: nodes with stable identities, synchronous in-order fan-out to
// subscribers, and the small set of combinators (Map, Zip) needed to wire
// user transformations between extractors and assemblers.
//
// Propagation is single-threaded and cooperative. Emit delivers a value to
// every subscriber in subscription order and returns only after all of them
// have run to completion; there is no buffering, batching, or implicit
// parallelism. A slow consumer therefore blocks the whole synchronous call
// chain. Errors returned by a consumer abort the fan-out and propagate back
// up to the original producer.
//
// Every node is assigned a UUID at construction. Graph algorithms key on
// that identifier, never on memory identity.
package node
