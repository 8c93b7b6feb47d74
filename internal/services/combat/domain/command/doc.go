// Package command defines the tagged command envelope that crosses the relay.
//
// Commands express a requested combat mutation. Proposers serialize them onto
// the relay and the authority validates them against the registry before the
// action reducer ever sees them, so malformed payloads from a peer stop at the
// ingress boundary instead of reaching the canonical document.
package command
