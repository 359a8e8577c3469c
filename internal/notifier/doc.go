// Package notifier defines what travels between the detector, the
// dispatcher and the channel senders: finished reports, per-attempt
// delivery outcomes and the recorder that observes them.
//
// # Channels
//
// Every channel sender (telegram, email) consumes its own queue through
// Consume, which applies the per-report guard: a failing or panicking
// report is logged and the loop moves on. The close report ends the loop
// after everything queued before it has been handled.
package notifier
