// Package billing keeps a local view of each user's subscription in sync
// with Stripe and answers the one question the rest of the platform asks:
// does this user currently have access to the paid product.
//
// The synchronizer consumes verified webhook events. Stripe delivers them
// at least once and without ordering guarantees, so every handler is an
// idempotent overwrite keyed by user id; replays and out-of-order delivery
// converge on the processor's latest view. Database writes and notification
// sends are never committed atomically: a crash between the two loses at
// most one notification, which is accepted rather than retried.
package billing
