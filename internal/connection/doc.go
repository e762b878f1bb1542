// Package connection implements the server side of a realtime subscriber.
//
// A Conn:
//   - Wraps one upgraded WebSocket and satisfies hub.Subscriber
//   - Queues outgoing price messages on a bounded buffer, dropping when full
//   - Pings the peer periodically and closes stale connections
//   - Reads and discards anything the peer sends
package connection
