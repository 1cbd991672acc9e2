// Package events pushes server-side changes to connected clients.
//
// Each persistent connection subscribes with its session as Principal and
// drains Subscription.Events onto the wire. Resources publish with
// Broadcast (every authenticated client) or Send (one identity).
package events
