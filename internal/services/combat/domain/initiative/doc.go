// Package initiative derives turn order from the combat document.
//
// Everything here is pure and reentrant: viewers call it on every document
// change without coordination, and the action reducer reuses the comparator and
// interrupt scheduler so both paths agree on a single ordering.
//
// The package holds:
//   - the canonical comparator and its tie-break rules,
//   - the round projector that expands per-round modifiers into slots,
//   - the turn navigator used for next/previous turn and re-clamping,
//   - and the interrupt scheduler that splices a participant ahead of another.
package initiative
