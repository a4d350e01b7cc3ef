// Package upstream talks to the conversational AI web backend. It starts
// and continues upstream conversations on behalf of a session credential
// and manages the per-credential generated asset store.
//
// The backend is a browser-facing API, so requests carry browser-shaped
// headers and the credential travels as a session cookie. Handlers depend
// on the Client interface; the HTTP implementation is plumbing.
package upstream
