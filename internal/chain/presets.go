package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network bundles the addresses needed to read one Aave v3 deployment.
type Network struct {
	Name          string
	ChainID       uint64
	PoolAddress   common.Address
	RPCURL        string
	PrimaryFeed   common.Address
	SecondaryFeed common.Address
}

var presets = map[string]Network{
	"arbitrum": {
		Name:          "arbitrum",
		ChainID:       42161,
		PoolAddress:   common.HexToAddress("0x794a61358D6845594F94dc1DB02A252b5b4814aD"),
		RPCURL:        "https://arb1.arbitrum.io/rpc",
		PrimaryFeed:   common.HexToAddress("0x639Fe6ab55C921f74e7fac1ee960C0B6293ba612"),
		SecondaryFeed: common.HexToAddress("0x6ce185860a4963106506C7155A4C6D0E8a1a0b6f"),
	},
	"ethereum": {
		Name:          "ethereum",
		ChainID:       1,
		PoolAddress:   common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
		RPCURL:        "https://eth.llamarpc.com",
		PrimaryFeed:   common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"),
		SecondaryFeed: common.HexToAddress("0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c"),
	},
}

// Overrides replace preset values when non-empty.
type Overrides struct {
	PoolAddress   string
	RPCURL        string
	PrimaryFeed   string
	SecondaryFeed string
}

// Preset returns the built-in deployment for name.
func Preset(name string) (Network, bool) {
	n, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// Names lists the supported preset names in stable order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve merges a preset with explicit overrides. An unknown chain is only
// accepted when every address and the RPC URL are supplied explicitly.
func Resolve(name string, o Overrides) (Network, error) {
	n, known := Preset(name)
	if !known {
		n = Network{Name: strings.ToLower(strings.TrimSpace(name))}
	}

	for _, addr := range []string{o.PoolAddress, o.PrimaryFeed, o.SecondaryFeed} {
		if addr != "" && !common.IsHexAddress(addr) {
			return Network{}, fmt.Errorf("invalid contract address %q", addr)
		}
	}

	if o.PoolAddress != "" {
		n.PoolAddress = common.HexToAddress(o.PoolAddress)
	}
	if o.RPCURL != "" {
		n.RPCURL = o.RPCURL
	}
	if o.PrimaryFeed != "" {
		n.PrimaryFeed = common.HexToAddress(o.PrimaryFeed)
	}
	if o.SecondaryFeed != "" {
		n.SecondaryFeed = common.HexToAddress(o.SecondaryFeed)
	}

	if !known {
		var zero common.Address
		if n.PoolAddress == zero || n.PrimaryFeed == zero || n.SecondaryFeed == zero || n.RPCURL == "" {
			return Network{}, fmt.Errorf("unknown chain %q: set a supported chain (%s) or provide pool address, price feeds and rpc url", name, strings.Join(Names(), ", "))
		}
	}
	return n, nil
}
