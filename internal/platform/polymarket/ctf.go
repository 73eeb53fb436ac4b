package polymarket

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/btcsniper/internal/crypto"
	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// ctfABI covers the two Conditional Tokens methods the merge needs.
const ctfABI = `[
 {"name":"balanceOf","type":"function","stateMutability":"view",
  "inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],
  "outputs":[{"name":"","type":"uint256"}]},
 {"name":"mergePositions","type":"function","stateMutability":"nonpayable",
  "inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},
            {"name":"conditionId","type":"bytes32"},{"name":"partition","type":"uint256[]"},
            {"name":"amount","type":"uint256"}],
  "outputs":[]}
]`

// binaryPartition is the index-set partition of a YES/NO condition.
var binaryPartition = []*big.Int{big.NewInt(1), big.NewInt(2)}

// ChainBackend is the subset of *ethclient.Client the CTF client uses.
type ChainBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// CTFClient merges complete YES/NO sets back into USDC collateral through
// the Conditional Tokens Framework contract.
type CTFClient struct {
	backend    ChainBackend
	signer     *crypto.Signer
	ctf        common.Address
	collateral common.Address
	abi        abi.ABI
}

// NewCTFClient creates a CTF client for the given contract addresses.
func NewCTFClient(backend ChainBackend, signer *crypto.Signer, ctfAddress, collateralAddress string) (*CTFClient, error) {
	parsed, err := abi.JSON(strings.NewReader(ctfABI))
	if err != nil {
		return nil, fmt.Errorf("polymarket/ctf: parse abi: %w", err)
	}
	if !common.IsHexAddress(ctfAddress) || !common.IsHexAddress(collateralAddress) {
		return nil, fmt.Errorf("polymarket/ctf: invalid contract address")
	}
	return &CTFClient{
		backend:    backend,
		signer:     signer,
		ctf:        common.HexToAddress(ctfAddress),
		collateral: common.HexToAddress(collateralAddress),
		abi:        parsed,
	}, nil
}

// BalanceOf returns the wallet's balance of an outcome position.
func (c *CTFClient) BalanceOf(ctx context.Context, tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("polymarket/ctf: invalid token id %q", tokenID)
	}
	data, err := c.abi.Pack("balanceOf", c.signer.Address(), id)
	if err != nil {
		return nil, fmt.Errorf("polymarket/ctf: pack balanceOf: %w", err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.ctf, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/ctf: balanceOf: %w", err)
	}
	vals, err := c.abi.Unpack("balanceOf", out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("polymarket/ctf: unpack balanceOf: %v", err)
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, errors.New("polymarket/ctf: unexpected balanceOf type")
	}
	return bal, nil
}

// MergeableAmount is min(balance(yes), balance(no)).
func (c *CTFClient) MergeableAmount(ctx context.Context, market domain.MarketInfo) (*big.Int, error) {
	yes, err := c.BalanceOf(ctx, market.YesToken)
	if err != nil {
		return nil, err
	}
	no, err := c.BalanceOf(ctx, market.NoToken)
	if err != nil {
		return nil, err
	}
	if yes.Cmp(no) < 0 {
		return yes, nil
	}
	return no, nil
}

// Merge sends mergePositions for amount complete sets and returns the
// transaction hash. It does not wait for the receipt.
func (c *CTFClient) Merge(ctx context.Context, conditionID string, amount *big.Int) (common.Hash, error) {
	condBytes := common.FromHex(conditionID)
	if len(condBytes) != 32 {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: condition id must be 32 bytes, got %d", len(condBytes))
	}
	var cond [32]byte
	copy(cond[:], condBytes)

	data, err := c.abi.Pack("mergePositions", c.collateral, [32]byte{}, cond, binaryPartition, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: pack mergePositions: %w", err)
	}

	from := c.signer.Address()
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: latest header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = tip
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.ctf, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: estimate gas: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.signer.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas * 12 / 10,
		To:        &c.ctf,
		Data:      data,
	})
	signed, err := c.signer.SignTransaction(tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: %w: %v", domain.ErrSigningFailed, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("polymarket/ctf: send transaction: %w", err)
	}
	return signed.Hash(), nil
}
