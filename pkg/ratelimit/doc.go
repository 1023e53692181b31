// Package ratelimit paces calls to the generation API.
//
// SlidingWindow tracks request timestamps over a rolling window and blocks in
// Wait until the oldest one falls out. New(0) returns Unlimited, which only
// checks the context.
package ratelimit
