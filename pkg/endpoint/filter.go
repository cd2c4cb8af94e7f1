package endpoint

// Filter selects endpoints, e.g. for bulk teardown.
type Filter func(Endpoint) bool

// All matches every endpoint.
func All() Filter {
	return func(Endpoint) bool { return true }
}

// ByAdapter matches endpoints carried by the given adapter.
func ByAdapter(a Adapter) Filter {
	return func(e Endpoint) bool { return e.Adapter == a }
}

// ByFlags matches endpoints that carry every bit in flags.
func ByFlags(flags Flags) Filter {
	return func(e Endpoint) bool { return e.Flags.Has(flags) }
}

// ByPeer matches endpoints that Match ep.
func ByPeer(ep Endpoint) Filter {
	return func(e Endpoint) bool { return e.Matches(ep) }
}

// And matches endpoints accepted by every filter.
func And(filters ...Filter) Filter {
	return func(e Endpoint) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}
