// Package chat implements the relay's session and message state engine.
//
// Engine owns presence, the public message history with its reactions, the
// per-connection rate limiter and private chats. It performs no I/O: every
// operation returns the deliveries the transport should fan out. Callers
// must drive an Engine from a single goroutine.
package chat
