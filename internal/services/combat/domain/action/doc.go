// Package action reduces combat commands into the next combat document.
//
// Reduce is a pure, total function: every registered command produces a new
// document without touching the input, and malformed or unknown commands leave
// the document unchanged. It knows nothing about authority, transport or
// persistence; the coordinator decides where and when it runs.
//
// Reduce does not keep the turn pointer in range. Callers that change the
// projected length (adding or removing participants, changing rounds) must
// re-clamp the turn with the initiative navigator and issue an update_round.
package action
