// Package server assembles the gateway and runs its HTTP server.
//
// App owns the process-wide collaborators (blob store, conversation
// manager, credential pool, upstream client, batch registry, statistics)
// and their lifecycles; Server wraps the HTTP listener with graceful
// shutdown. Both are constructed explicitly from configuration, never
// lazily through globals.
package server
