// Package expand turns a snippet into final text.
//
// Expansion resolves the snippet's references recursively through a
// store, bounded by a depth ceiling and a concurrency gate, with
// concurrent lookups of the same reference collapsed into one store
// call. Cycles are detected against the ancestor path of each branch.
// Resolved content substitutes into the body, variables fill in
// through layered lookup, and the finished result lands in a TTL
// cache with pluggable eviction.
//
// Failures inside an expansion become categorized conditions routed
// through a per-category policy (fail, warn, ignore, break,
// placeholder, retry). The top-level entry points always return a
// Result; only its Success flag and error list report trouble.
package expand
