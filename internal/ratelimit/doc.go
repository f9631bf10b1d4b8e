// Package ratelimit admits or rejects calls per named operation using
// interval refilled token buckets.
//
// Each operation owns one bucket holding at most Limit tokens. A call takes
// one token or is rejected. Tokens are not trickled back: once Window has
// elapsed since the bucket's window started, the bucket is topped back up to
// Limit in one step and a new window begins on the interval grid.
//
// Buckets live in process memory for the lifetime of the Limiter and are not
// shared between instances.
package ratelimit
