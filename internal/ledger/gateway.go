// Package ledger talks to the on-chain game contracts: it submits round
// outcomes, reads pool snapshots, and polls contract events for roster
// changes.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// gameABI covers the contract surface the oracle needs: the outcome writer,
// the pool view, and the roster events.
const gameABI = `[
  {"type":"function","name":"processRound","stateMutability":"nonpayable","inputs":[{"name":"priceUp","type":"bool"}],"outputs":[]},
  {"type":"function","name":"getPoolInfo","stateMutability":"view","inputs":[],"outputs":[
    {"name":"totalDeposit","type":"uint256"},
    {"name":"currentRound","type":"uint256"},
    {"name":"lastRoundTime","type":"uint256"},
    {"name":"isActive","type":"bool"},
    {"name":"activePlayerCount","type":"uint256"},
    {"name":"totalPlayerCount","type":"uint256"}]},
  {"type":"event","name":"PlayerJoined","inputs":[{"name":"player","type":"address","indexed":true}]},
  {"type":"event","name":"PlayerCommitted","inputs":[{"name":"player","type":"address","indexed":true},{"name":"predictUp","type":"bool","indexed":false}]},
  {"type":"event","name":"PlayerEliminated","inputs":[{"name":"player","type":"address","indexed":true}]},
  {"type":"event","name":"RoundEnded","inputs":[{"name":"round","type":"uint256","indexed":false},{"name":"priceUp","type":"bool","indexed":false}]},
  {"type":"event","name":"GameEnded","inputs":[{"name":"winner","type":"address","indexed":true}]}
]`

// Config holds the chain connection and per-channel contract addresses.
type Config struct {
	RPCURL     string
	PrivateKey string // hex, no 0x prefix
	ChainID    int64
	// Contracts maps a channel key to its pool contract address.
	Contracts map[string]string
	// CallTimeout bounds each outcome submission including confirmation.
	CallTimeout time.Duration
}

// Gateway implements domain.Ledger against EVM pool contracts, one contract
// per channel.
type Gateway struct {
	client      *ethclient.Client
	parsedABI   abi.ABI
	opts        *bind.TransactOpts
	contracts   map[string]*bind.BoundContract
	addresses   map[string]common.Address
	callTimeout time.Duration
	logger      *slog.Logger
}

var _ domain.Ledger = (*Gateway)(nil)

// NewGateway dials the RPC endpoint and binds one contract per configured
// channel. The private key signs outcome transactions.
func NewGateway(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(gameABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}

	key, err := parseKey(cfg.PrivateKey)
	if err != nil {
		client.Close()
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ledger: transactor: %w", err)
	}

	contracts := make(map[string]*bind.BoundContract, len(cfg.Contracts))
	addresses := make(map[string]common.Address, len(cfg.Contracts))
	for channel, hexAddr := range cfg.Contracts {
		if !common.IsHexAddress(hexAddr) {
			client.Close()
			return nil, fmt.Errorf("ledger: channel %s: invalid contract address %q", channel, hexAddr)
		}
		addr := common.HexToAddress(hexAddr)
		addresses[channel] = addr
		contracts[channel] = bind.NewBoundContract(addr, parsed, client, client, client)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	return &Gateway{
		client:      client,
		parsedABI:   parsed,
		opts:        opts,
		contracts:   contracts,
		addresses:   addresses,
		callTimeout: timeout,
		logger:      logger.With(slog.String("component", "ledger")),
	}, nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse private key: %w", err)
	}
	return key, nil
}

// Close releases the RPC connection.
func (g *Gateway) Close() error {
	g.client.Close()
	return nil
}

// SignerAddress returns the address outcome transactions are sent from.
func (g *Gateway) SignerAddress() common.Address {
	return g.opts.From
}

// RecordOutcome submits processRound(priceUp) to the channel's contract and
// waits for the transaction to be mined. All failures, including a reverted
// transaction, are wrapped in domain.ErrLedgerCall so the caller can treat
// them uniformly.
func (g *Gateway) RecordOutcome(ctx context.Context, channel string, wentUp bool) (domain.Receipt, error) {
	contract, ok := g.contracts[channel]
	if !ok {
		return domain.Receipt{}, fmt.Errorf("ledger: channel %s: %w", channel, domain.ErrUnknownChannel)
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	opts := *g.opts
	opts.Context = ctx

	tx, err := contract.Transact(&opts, "processRound", wentUp)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("ledger: process round %s: %v: %w", channel, err, domain.ErrLedgerCall)
	}

	receipt, err := bind.WaitMined(ctx, g.client, tx)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("ledger: confirm %s tx %s: %v: %w",
			channel, tx.Hash().Hex(), err, domain.ErrLedgerCall)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Receipt{}, fmt.Errorf("ledger: tx %s reverted: %w", tx.Hash().Hex(), domain.ErrLedgerCall)
	}

	g.logger.InfoContext(ctx, "round outcome recorded",
		slog.String("channel", channel),
		slog.Bool("went_up", wentUp),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("block", receipt.BlockNumber.Uint64()),
	)

	return domain.Receipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		ConfirmedAt: time.Now(),
	}, nil
}

// PoolInfo reads the channel's getPoolInfo view. Any failure degrades to
// ok=false; pool reads never block or fail the caller.
func (g *Gateway) PoolInfo(ctx context.Context, channel string) (domain.PoolInfo, bool) {
	contract, ok := g.contracts[channel]
	if !ok {
		return domain.PoolInfo{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getPoolInfo"); err != nil {
		g.logger.WarnContext(ctx, "pool info read failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return domain.PoolInfo{}, false
	}
	if len(out) != 6 {
		g.logger.WarnContext(ctx, "pool info shape mismatch",
			slog.String("channel", channel),
			slog.Int("fields", len(out)),
		)
		return domain.PoolInfo{}, false
	}

	totalDeposit, _ := out[0].(*big.Int)
	currentRound, _ := out[1].(*big.Int)
	lastRoundTime, _ := out[2].(*big.Int)
	active, _ := out[3].(bool)
	activePlayers, _ := out[4].(*big.Int)
	totalPlayers, _ := out[5].(*big.Int)
	if totalDeposit == nil || currentRound == nil || lastRoundTime == nil ||
		activePlayers == nil || totalPlayers == nil {
		return domain.PoolInfo{}, false
	}

	return domain.PoolInfo{
		Channel:       channel,
		TotalDeposit:  decimal.NewFromBigInt(totalDeposit, -18).String(),
		CurrentRound:  currentRound.Uint64(),
		LastRoundTime: time.Unix(lastRoundTime.Int64(), 0),
		Active:        active,
		ActivePlayers: int(activePlayers.Int64()),
		TotalPlayers:  int(totalPlayers.Int64()),
	}, true
}
