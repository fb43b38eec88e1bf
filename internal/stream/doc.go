// Package stream fans completed batches out to live subscribers.
//
// A Hub holds the set of subscriber streams. Browsers subscribe either with
// Server-Sent Events (SSEHandler) or with a WebSocket (WSHandler); both
// register a Client in the same Hub and leave it when their connection ends.
// Delivery is best effort: a slow subscriber misses frames instead of
// stalling the others, and a failed write drops the subscriber.
package stream
