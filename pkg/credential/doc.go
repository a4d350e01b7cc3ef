// Package credential tracks the rotating session credentials used to call
// the upstream backend.
//
// Credentials are grouped into named pools loaded from a JSON file whose
// membership and ordering are externally managed; this package only tracks
// health and quota state and selects credentials for outbound requests.
// Selection is uniformly random over the active set minus a caller-supplied
// exclusion set, so a retry can move to a different credential without
// disturbing global rotation state. Transient failures keep a credential
// eligible; only quota exhaustion or invalidation removes it from the
// active set.
package credential
