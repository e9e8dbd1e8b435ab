// Package session implements the client-side token lifecycle for the
// Threatalytics API: durable credential storage behind the Store interface,
// expiry validation with a configurable skew margin, refresh-token exchange
// with single-flight deduplication, and an authenticated request gateway
// that attaches a valid bearer credential to outbound calls.
//
// Token-lifecycle errors bubble up as a requirement to re-authenticate;
// see the package error values for the taxonomy.
package session
