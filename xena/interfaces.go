package xena

import (
	"slices"
)

// State is the reported state of a single port.
type State struct {
	Lock Lock
}

// PortState is one flattened entry of an Interfaces directory.
type PortState struct {
	Module uint8
	Port   uint8
	State  State
}

// Interfaces is the module -> port -> state directory reported by one reservation query.
//
// A directory is built wholesale from a single query response and handed to the caller as an
// independent snapshot. It is never patched afterwards.
type Interfaces struct {
	Modules map[uint8]map[uint8]State
}

// Len returns the number of ports in the directory.
func (i Interfaces) Len() int {
	n := 0
	for _, ports := range i.Modules {
		n += len(ports)
	}

	return n
}

// Get returns the state of module/port.
func (i Interfaces) Get(module, port uint8) (State, bool) {
	ports, ok := i.Modules[module]
	if !ok {
		return State{}, false
	}
	st, ok := ports[port]

	return st, ok
}

// ModuleIDs returns the module ids in ascending order.
func (i Interfaces) ModuleIDs() []uint8 {
	ids := make([]uint8, 0, len(i.Modules))
	for id := range i.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// PortIDs returns the port ids of module in ascending order.
func (i Interfaces) PortIDs(module uint8) []uint8 {
	ports := i.Modules[module]
	ids := make([]uint8, 0, len(ports))
	for id := range ports {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// Entries returns every port ordered by module, then port.
func (i Interfaces) Entries() []PortState {
	entries := make([]PortState, 0, i.Len())
	for _, module := range i.ModuleIDs() {
		for _, port := range i.PortIDs(module) {
			entries = append(entries, PortState{Module: module, Port: port, State: i.Modules[module][port]})
		}
	}

	return entries
}

func (i *Interfaces) set(module, port uint8, st State) {
	if i.Modules == nil {
		i.Modules = make(map[uint8]map[uint8]State)
	}
	ports, ok := i.Modules[module]
	if !ok {
		ports = make(map[uint8]State)
		i.Modules[module] = ports
	}
	ports[port] = st
}
