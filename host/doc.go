// Package host is the engine-facing half of the bridge: the interfaces an
// embedding host implements over its world, the Snapshot builder that
// freezes that world for one script execution, and the applier that replays
// a returned command list against the live model.
//
// Ownership boundary: scripts never hold references into the model. Reads
// travel out as one immutable Snapshot, writes travel back as commands, and
// every command re-resolves its target here, against live state, at apply
// time.
package host
