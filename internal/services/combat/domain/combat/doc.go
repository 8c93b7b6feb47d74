// Package combat models the shared combat document.
//
// The document is the single persisted value every connected viewer observes:
// the participant set, the round counter and the turn pointer. Ordering is
// never stored here; it is derived per round by the initiative package so that
// modifiers (took initiative, extra actions) stay scoped to the round that
// granted them.
//
// The package holds:
//   - the persisted participant and state shapes,
//   - the entity back-reference union,
//   - and the ephemeral round entry produced by projection.
package combat
