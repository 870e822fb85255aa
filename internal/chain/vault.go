// Package chain reads the portfolio vault's on-chain state. It only derives
// inputs for the engines (current allocation, total value); transaction
// construction and signing happen elsewhere entirely.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/yourorg/defi-portfolio-engine/internal/model"
	"github.com/sirupsen/logrus"
)

// vaultABI covers the read-only surface of the vault contract the engine
// needs: per-protocol balances, total value, and the drift threshold constant.
const vaultABI = `[
  {"name":"protocolBalances","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"lending","type":"uint256"},{"name":"liquidity","type":"uint256"},{"name":"farm","type":"uint256"}]},
  {"name":"totalValue","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"driftThresholdBps","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// VaultReader reads allocation state from the vault contract.
type VaultReader struct {
	client *ethclient.Client
	vault  common.Address
	abi    abi.ABI
}

// NewVaultReader dials the RPC endpoint and binds the vault contract address.
func NewVaultReader(rpcURL, vaultAddress string) (*VaultReader, error) {
	if !common.IsHexAddress(vaultAddress) {
		return nil, fmt.Errorf("invalid vault address: %q", vaultAddress)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC endpoint: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}

	logrus.Infof("Vault reader bound to %s", vaultAddress)
	return &VaultReader{
		client: client,
		vault:  common.HexToAddress(vaultAddress),
		abi:    parsed,
	}, nil
}

// CurrentAllocation derives percentage weights from the vault's per-protocol
// balances. Returns the zero allocation when the vault is empty.
func (r *VaultReader) CurrentAllocation(ctx context.Context) (model.Allocation, error) {
	out, err := r.call(ctx, "protocolBalances")
	if err != nil {
		return model.Allocation{}, err
	}
	if len(out) != model.NumProtocols {
		return model.Allocation{}, fmt.Errorf("unexpected protocolBalances arity: %d", len(out))
	}

	balances := make([]*big.Int, model.NumProtocols)
	total := new(big.Int)
	for i, v := range out {
		b, ok := v.(*big.Int)
		if !ok {
			return model.Allocation{}, fmt.Errorf("unexpected balance type %T", v)
		}
		balances[i] = b
		total.Add(total, b)
	}

	if total.Sign() == 0 {
		return model.Allocation{}, nil
	}

	pct := func(b *big.Int) float64 {
		f := new(big.Float).Quo(new(big.Float).SetInt(b), new(big.Float).SetInt(total))
		v, _ := f.Float64()
		return v * 100
	}

	return model.Allocation{
		Lending:       pct(balances[model.ProtocolLending]),
		LiquidityPool: pct(balances[model.ProtocolLiquidityPool]),
		YieldFarm:     pct(balances[model.ProtocolYieldFarm]),
	}, nil
}

// TotalValue returns the vault's total value in its base unit.
func (r *VaultReader) TotalValue(ctx context.Context) (*big.Int, error) {
	out, err := r.call(ctx, "totalValue")
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected totalValue arity: %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected totalValue type %T", out[0])
	}
	return v, nil
}

// DriftThresholdBps reads the contract's rebalance threshold in basis points.
func (r *VaultReader) DriftThresholdBps(ctx context.Context) (int64, error) {
	out, err := r.call(ctx, "driftThresholdBps")
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected driftThresholdBps arity: %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected driftThresholdBps type %T", out[0])
	}
	return v.Int64(), nil
}

// VerifyNetwork checks the RPC endpoint serves the expected network.
func (r *VaultReader) VerifyNetwork(ctx context.Context, network SupportedNetwork) error {
	want := ChainID(network)
	if want == 0 {
		return fmt.Errorf("unsupported network: %s", network)
	}
	got, err := r.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if got.Int64() != want {
		return fmt.Errorf("chain id mismatch: endpoint serves %d, expected %d", got.Int64(), want)
	}
	return nil
}

// Close releases the underlying RPC connection.
func (r *VaultReader) Close() {
	r.client.Close()
}

// call packs, executes, and unpacks one view-function call on the vault.
func (r *VaultReader) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := r.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &r.vault,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	out, err := r.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out, nil
}
