// Package failover selects and orders candidate providers per operation via
// pluggable strategies, executes operations with per-provider circuit
// breakers and bounded retries, and records outcomes into the health
// monitor.
//
// The per-call candidate iteration is strictly sequential: one attempt is in
// flight at a time, bounded by the rule's per-attempt timeout, and the loop
// stops at the first success. A not-found error aborts the loop without
// retry, since no other provider can resolve a key that does not exist.
//
// Circuit breakers are keyed by (provider, operation). A breaker opens after
// five consecutive failures and stays open for a five-minute cooldown; any
// success closes it. Candidates with an open breaker are skipped without
// consuming a retry attempt.
package failover
