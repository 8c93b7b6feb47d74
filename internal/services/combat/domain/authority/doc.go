// Package authority routes combat commands to the single peer allowed to
// mutate the canonical document.
//
// The local peer applies a command when it holds authority and relays it
// otherwise. Applies run the action reducer and the world clock side effect
// inside one store transaction and are serialized in arrival order.
package authority
