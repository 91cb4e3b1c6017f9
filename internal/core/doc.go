// Package core is the CRM structured-data import pipeline.
//
// It has no transport or storage dependencies: web handlers, the CLI and the
// background worker all drive it the same way.
//
// # Pipeline
//
// Untrusted text moves through five steps:
//
//  1. [DetectFormat] picks csv or json from a filename or the text itself.
//  2. [ParseCSV] or [ParseJSON] produce ordered [RawRecord] values.
//  3. [Normalize] projects each record onto an [EntitySchema].
//  4. [Validate] collects every violation per record.
//  5. [Importer.Import] commits the valid subset through a [CommitFunc] and
//     returns an [ImportSummary].
//
// Only a read failure, malformed input or a failed commit abort an attempt.
// Invalid records and a store that persists fewer records than requested
// degrade to a partial summary instead.
//
// # Sessions
//
// A [Session] wraps one attempt for an interactive caller, tracking the
// loaded source, the (possibly overridden) format and the phase:
//
//	sess := core.NewSession(core.SessionConfig{ID: id, Schema: schema, Commit: commit})
//	if err := sess.LoadFromSource(ctx, core.TextSource(text)); err != nil { ... }
//	summary, err := sess.Submit(ctx)
//
// # Forms
//
// Single-record dialogs use [Form], a value object whose Submit runs the same
// normalizer and validator before calling a save function.
//
// # Error Handling
//
// Technical errors are mapped to coded user messages with [MapError].
package core
