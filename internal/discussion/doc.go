// Package discussion reconciles a comment tree from a structured source with
// the display order and penalties scraped from the rendered page, then assigns
// every surviving comment a dotted hierarchy path ("2.1.3") and a score in
// [0, MaxScore].
//
// Pipeline: Reconcile -> AssignPaths -> AssignScores -> FormatLine/BuildLookup.
// Process runs the whole chain. Nothing here does I/O or keeps state between
// runs.
package discussion
