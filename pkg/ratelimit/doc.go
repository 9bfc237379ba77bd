// Package ratelimit paces outgoing requests.
//
// TokenBucket caps Steam page fetches per minute. SlidingWindow keeps message
// sends to a discussion group under the platform's per-minute allowance.
// Both block in Wait until a slot frees up or the context is cancelled.
package ratelimit
