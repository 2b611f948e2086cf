// Package stage is an in-memory reference world behind the host
// interfaces: scenes of objects with transforms, properties and parentage,
// sphere-collision ray casts, and camera/vehicle/character capabilities,
// loaded from a TOML world file. bridgectl runs its tick loop against it,
// and the package doubles as the integration fixture for the applier and
// the bridge.
//
// A World belongs to one goroutine, the tick loop; it is not safe for
// concurrent use.
package stage
