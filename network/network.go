package network

import (
	"errors"
	"fmt"
)

// ErrUnknownNetwork is returned when a network id or name has no parameters.
var ErrUnknownNetwork = errors.New("network: unknown network")

// ID identifies a network. The numeric value is the one used as the
// network component of CAP26 derivation paths.
type ID uint8

const (
	// MainnetID is the id of the main network.
	MainnetID ID = 0x01
	// StokenetID is the id of the public test network.
	StokenetID ID = 0x02
)

// Network type represents address prefixes and derivation parameters for
// each network.
type Network struct {
	ID   ID
	Name string
	// Human-readable part for bech32 encoded account addresses.
	AccountHRP string
	// Human-readable part for bech32 encoded identity addresses.
	IdentityHRP string
}

// Mainnet defines the network parameters for the main network.
var Mainnet = Network{
	ID:          MainnetID,
	Name:        "mainnet",
	AccountHRP:  "account_rdx",
	IdentityHRP: "identity_rdx",
}

// Stokenet defines the network parameters for the public test network.
var Stokenet = Network{
	ID:          StokenetID,
	Name:        "stokenet",
	AccountHRP:  "account_tdx_2_",
	IdentityHRP: "identity_tdx_2_",
}

var byID = map[ID]*Network{
	MainnetID:  &Mainnet,
	StokenetID: &Stokenet,
}

// Params returns the parameters of the network identified by id.
func (id ID) Params() (*Network, error) {
	n, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNetwork, uint8(id))
	}
	return n, nil
}

// String returns the network name, or the numeric id when unknown.
func (id ID) String() string {
	if n, ok := byID[id]; ok {
		return n.Name
	}
	return fmt.Sprintf("network(%d)", uint8(id))
}

// FromName returns the network with the given name.
func FromName(name string) (*Network, error) {
	for _, n := range byID {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
}

// FromHRP returns the network whose account or identity HRP equals hrp.
func FromHRP(hrp string) (*Network, error) {
	for _, n := range byID {
		if n.AccountHRP == hrp || n.IdentityHRP == hrp {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: hrp %s", ErrUnknownNetwork, hrp)
}
