package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrNoPriceData      = errors.New("no price data available")
	ErrLedgerCall       = errors.New("ledger call failed")
	ErrChannelFinished  = errors.New("channel game finished")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrAlreadyCommitted = errors.New("direction already committed this round")
	ErrEliminated       = errors.New("participant eliminated")
	ErrWSDisconnect     = errors.New("websocket disconnected")
)
