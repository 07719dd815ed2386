// Package notify renders and delivers subscription lifecycle emails.
//
// It covers two delivery paths: the event-driven payment failure
// notification triggered by the webhook synchronizer, and the daily
// scanner that picks up trial ending, trial ended, and renewal reminder
// notifications from the subscription table. Delivery is best effort;
// a failed send never blocks webhook processing, and scanner failures
// are collected per recipient instead of aborting the run.
package notify
