package ledger

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// RosterSink receives contract-originated roster changes. The game registry
// implements it; the poller never touches game state directly.
type RosterSink interface {
	PlayerJoined(ctx context.Context, channel, address string)
	PlayerCommitted(ctx context.Context, channel, address string, predictUp bool)
}

// Poller scans the pool contracts for PlayerJoined and PlayerCommitted events
// and forwards them to the roster sink. It tracks the last scanned block so
// each log is delivered once per process lifetime.
type Poller struct {
	gateway  *Gateway
	sink     RosterSink
	interval time.Duration

	lastBlock uint64
	logger    *slog.Logger
}

// NewPoller creates a Poller over the gateway's configured contracts.
func NewPoller(gateway *Gateway, sink RosterSink, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		gateway:  gateway,
		sink:     sink,
		interval: interval,
		logger:   logger.With(slog.String("component", "ledger_events")),
	}
}

// Run polls for new logs until ctx is cancelled. RPC failures are logged and
// retried on the next tick; the poller never gives up.
func (p *Poller) Run(ctx context.Context) error {
	head, err := p.gateway.client.BlockNumber(ctx)
	if err == nil {
		p.lastBlock = head
	}
	p.logger.Info("event polling started",
		slog.Uint64("from_block", p.lastBlock),
		slog.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("event poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	head, err := p.gateway.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head <= p.lastBlock {
		return nil
	}

	joinedID := p.gateway.parsedABI.Events["PlayerJoined"].ID
	committedID := p.gateway.parsedABI.Events["PlayerCommitted"].ID

	addresses := make([]common.Address, 0, len(p.gateway.addresses))
	channelByAddr := make(map[common.Address]string, len(p.gateway.addresses))
	for channel, addr := range p.gateway.addresses {
		addresses = append(addresses, addr)
		channelByAddr[addr] = channel
	}

	logs, err := p.gateway.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(p.lastBlock + 1),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: addresses,
		Topics:    [][]common.Hash{{joinedID, committedID}},
	})
	if err != nil {
		return err
	}

	for _, entry := range logs {
		channel, ok := channelByAddr[entry.Address]
		if !ok || len(entry.Topics) < 2 {
			continue
		}
		player := common.BytesToAddress(entry.Topics[1].Bytes()).Hex()

		switch entry.Topics[0] {
		case joinedID:
			p.logger.Info("player joined",
				slog.String("channel", channel),
				slog.String("address", player),
			)
			p.sink.PlayerJoined(ctx, channel, player)
		case committedID:
			predictUp, err := p.decodeCommit(entry)
			if err != nil {
				p.logger.Warn("undecodable commit event",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			p.sink.PlayerCommitted(ctx, channel, player, predictUp)
		}
	}

	p.lastBlock = head
	return nil
}

func (p *Poller) decodeCommit(entry types.Log) (bool, error) {
	values, err := p.gateway.parsedABI.Unpack("PlayerCommitted", entry.Data)
	if err != nil {
		return false, err
	}
	if len(values) != 1 {
		return false, domain.ErrLedgerCall
	}
	predictUp, _ := values[0].(bool)
	return predictUp, nil
}
