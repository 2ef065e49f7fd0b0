package domain

import (
	"errors"
	"fmt"
)

// GameConfig holds the fixed economics of a play. WinRate and
// ScratchThreshold are shown to the player only; outcomes are decided by the
// backend.
type GameConfig struct {
	StarsCost        int64
	MintAmountNano   int64
	WinRate          float64
	ScratchThreshold float64
	Prizes           Catalog
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		StarsCost:        25,
		MintAmountNano:   1_000_000_000,
		WinRate:          0.20,
		ScratchThreshold: 0.70,
		Prizes:           DefaultCatalog(),
	}
}

// PlayCost is the amount charged for one play in the method's smallest unit.
func (g GameConfig) PlayCost(method PaymentMethod) int64 {
	if method == PaymentMethodTON {
		return g.MintAmountNano
	}
	return g.StarsCost
}

func (g GameConfig) Validate() error {
	var errs []error
	if g.StarsCost <= 0 {
		errs = append(errs, fmt.Errorf("stars cost must be positive, got %d", g.StarsCost))
	}
	if g.MintAmountNano <= 0 {
		errs = append(errs, fmt.Errorf("mint amount must be positive, got %d", g.MintAmountNano))
	}
	if g.WinRate < 0 || g.WinRate > 1 {
		errs = append(errs, fmt.Errorf("win rate must be within [0,1], got %v", g.WinRate))
	}
	if g.ScratchThreshold < 0 || g.ScratchThreshold > 1 {
		errs = append(errs, fmt.Errorf("scratch threshold must be within [0,1], got %v", g.ScratchThreshold))
	}
	if len(g.Prizes) == 0 {
		errs = append(errs, errors.New("prize catalog is empty"))
	}
	return errors.Join(errs...)
}

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

// MintTarget names the TON network and NFT collection prizes are minted
// into. An empty collection leaves the choice to the backend.
type MintTarget struct {
	Network           string
	CollectionAddress string
}

func (m MintTarget) Validate() error {
	switch m.Network {
	case NetworkMainnet, NetworkTestnet:
		return nil
	default:
		return fmt.Errorf("ton network must be %s or %s, got %q", NetworkMainnet, NetworkTestnet, m.Network)
	}
}
