package vault

import "time"

// EventKind classifies committed vault operations.
type EventKind string

const (
	EventDepositNative EventKind = "deposit_native"
	EventDepositAsset  EventKind = "deposit_asset"
	EventWithdrawal    EventKind = "withdrawal"
	EventTreasurySweep EventKind = "treasury_sweep"
)

// Event is the durable record of a committed operation. Amounts are decimal
// strings to keep uint256 values exact across storage backends.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Account   Address   `json:"account"`
	Amount    string    `json:"amount"`
	Fee       string    `json:"fee,omitempty"`
	Nonce     *uint64   `json:"nonce,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// State is the persisted control state of a vault instance: everything that
// must survive across operations apart from the event history.
type State struct {
	Paused       bool                            `json:"paused"`
	Nonce        uint64                          `json:"nonce"`
	Capabilities map[Address]map[Capability]bool `json:"capabilities"`
}

// NewState returns an empty, active state with a nonce of zero.
func NewState() State {
	return State{Capabilities: make(map[Address]map[Capability]bool)}
}

// Clone deep-copies the state so staged mutations never alias committed
// state.
func (s State) Clone() State {
	out := State{Paused: s.Paused, Nonce: s.Nonce, Capabilities: make(map[Address]map[Capability]bool, len(s.Capabilities))}
	for addr, caps := range s.Capabilities {
		set := make(map[Capability]bool, len(caps))
		for c, v := range caps {
			set[c] = v
		}
		out.Capabilities[addr] = set
	}
	return out
}

// Has reports whether the account holds the capability.
func (s State) Has(account Address, c Capability) bool {
	return s.Capabilities[account][c]
}

// Grant adds a capability assignment.
func (s *State) Grant(account Address, c Capability) {
	if s.Capabilities == nil {
		s.Capabilities = make(map[Address]map[Capability]bool)
	}
	set := s.Capabilities[account]
	if set == nil {
		set = make(map[Capability]bool)
		s.Capabilities[account] = set
	}
	set[c] = true
}

// Revoke removes a capability assignment.
func (s *State) Revoke(account Address, c Capability) {
	if set, ok := s.Capabilities[account]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(s.Capabilities, account)
		}
	}
}
