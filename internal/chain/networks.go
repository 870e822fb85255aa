package chain

// SupportedNetwork represents a blockchain network the vault is deployed on
type SupportedNetwork string

// Supported blockchain networks
const (
	NetworkEthereum SupportedNetwork = "ethereum"
	NetworkPolygon  SupportedNetwork = "polygon"
	NetworkArbitrum SupportedNetwork = "arbitrum"
	NetworkOptimism SupportedNetwork = "optimism"
	NetworkBase     SupportedNetwork = "base"
)

// chainIDs maps each supported network to its canonical chain ID, used to
// verify the configured RPC endpoint actually serves the expected network.
var chainIDs = map[SupportedNetwork]int64{
	NetworkEthereum: 1,
	NetworkPolygon:  137,
	NetworkArbitrum: 42161,
	NetworkOptimism: 10,
	NetworkBase:     8453,
}

// ChainID returns the canonical chain ID for a network, or 0 if unknown.
func ChainID(n SupportedNetwork) int64 {
	return chainIDs[n]
}
