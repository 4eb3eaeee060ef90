// Package reconcile implements the reconciliation engine: it turns the
// cloud-reported interface manifest into desired kernel state, diffs that
// against an observed snapshot, applies the resulting actions through
// netlink, and drives the whole pipeline from a single serialized loop
// with per-interface convergence tracking and backoff.
package reconcile
