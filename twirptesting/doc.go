// Package twirptesting helps with testing Twirp servers, clients, and
// alternate channel implementations. Its main value is in a function that,
// given a channel, will ensure the Twirp protocol semantics hold across it.
//
// It covers successful round trips in both encodings, error propagation with
// codes, messages, and metadata, request routing information, and client-side
// interceptors.
//
// The channel must be connected to a server that exposes the test server
// implementation contained in this package: &twirptesting.TestServer{}
package twirptesting
