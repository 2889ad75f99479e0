// Package secrets implements the layered secret-resolution engine at the
// heart of oxsecrets.
//
// A secret is a named string value inside a category (a namespace such as
// "root" or "prod/data"). Resolution consults, in order:
//
//  1. The process environment. A variable named {PREFIX}_{CATEGORY}_{NAME}
//     (upper-cased, non-alphanumerics folded to underscores) always wins and
//     bypasses the cache entirely.
//  2. The shared in-memory cache, a category -> name -> value mapping owned
//     by the Server for a given backend kind.
//  3. The backend itself, via exactly one Load call followed by one more
//     cache lookup. There is never more than one reload per GetSecret call.
//
// # Servers and backends
//
// A Server owns the cache and the resolution protocol; a Backend only knows
// how to produce secret data from its medium (a local file, the environment,
// the OS keyring, a cloud secret manager). There is one Server per backend
// kind in a process, shared by every call site, so a category loaded through
// one handle is visible to all others.
//
// Backends perform their blocking I/O outside the cache mutex. As a result
// two concurrent misses for the same category may both invoke the loader;
// the second merge wins harmlessly. This is an accepted race, not a strict
// at-most-once guarantee, and loads are therefore required to be idempotent.
//
// # Category rewriting
//
// An optional rewrite rule (a regular expression and replacement) is applied
// to every requested category before cache lookup, environment lookup, or
// backend load. It is applied exactly once per call, never recursively. The
// usual use is redirecting production categories to test ones:
//
//	rule, _ := secrets.NewRewriteRule(`^prod/`, "test/")
//	srv := secrets.NewServer(backend, secrets.WithRewriteRule(rule))
//	// GetSecret(ctx, "pw", WithCategory("prod/data")) now reads test/data.
//
// # Errors
//
// The engine reports failures through the typed errors in this package:
// NotFoundError, NotConfiguredError, UnavailableError, FormatError and
// UnsupportedError. Use errors.As to distinguish "the secret does not exist"
// from "the backing store could not be reached".
package secrets
