// Package conversation implements the conversation-context correlation
// subsystem of the gateway.
//
// The external chat protocol is stateless: clients resend the full message
// history on every request. The upstream backend, however, continues a
// session far more cheaply from an opaque (conversation id, response id)
// pointer. This package bridges the two models. Each tracked conversation
// stores the upstream session pointer together with a fingerprint of the
// system/user message history; a new stateless request is correlated with
// a prior session by recomputing the fingerprint minus its newest user
// turn and resolving it through a reverse index.
//
// The Manager owns all indices under a single mutex: the primary store
// (conversation id to context), the reverse hash index, and the ordered
// per-credential conversation lists used for FIFO capacity eviction.
// Expiry is enforced lazily on lookup and by a periodic sweep. State is
// persisted asynchronously through a BlobStore; persistence failures are
// logged and never corrupt the in-memory state.
package conversation
