package xenasim

import (
	"cmp"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-overseer/xena"
)

type portKey struct {
	module uint8
	port   uint8
}

func comparePortKey(a, b portKey) int {
	if c := cmp.Compare(a.module, b.module); c != 0 {
		return c
	}

	return cmp.Compare(a.port, b.port)
}

// reservationTable holds the owner of every port, shared by all clients. An empty owner
// means released.
type reservationTable struct {
	owners *xsync.MapOf[portKey, string]
	keys   []portKey
}

func newReservationTable(cfg *config) *reservationTable {
	t := &reservationTable{owners: xsync.NewMapOf[portKey, string]()}
	for m := range cfg.modules {
		for p := range cfg.ports {
			key := portKey{module: uint8(m), port: uint8(p)} //nolint:gosec // layout is capped at 256
			t.owners.Store(key, cfg.reserved[key])
			t.keys = append(t.keys, key)
		}
	}
	slices.SortFunc(t.keys, comparePortKey)

	return t
}

// lock returns the state of key as seen by owner.
func (t *reservationTable) lock(key portKey, owner string) (xena.Lock, bool) {
	cur, ok := t.owners.Load(key)
	if !ok {
		return xena.Released, false
	}

	return lockFor(cur, owner), true
}

func (t *reservationTable) owner(key portKey) (string, bool) {
	return t.owners.Load(key)
}

// apply performs verb on key for owner and reports whether the chassis accepts it.
func (t *reservationTable) apply(verb xena.Verb, key portKey, owner string) bool {
	accepted := false
	t.owners.Compute(key, func(cur string, loaded bool) (string, bool) {
		if !loaded {
			return "", true
		}

		switch {
		case verb == xena.VerbReserve && cur == "":
			accepted = true
			return owner, false
		case verb == xena.VerbRelease && cur == owner:
			accepted = true
			return "", false
		case verb == xena.VerbRelinquish && cur != "" && cur != owner:
			accepted = true
			return "", false
		default:
			return cur, false
		}
	})

	return accepted
}

func lockFor(cur string, owner string) xena.Lock {
	switch cur {
	case "":
		return xena.Released
	case owner:
		return xena.ReservedByYou
	default:
		return xena.ReservedByOther
	}
}
