package watcher

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/format"
	"walletwatch/apps/walletwatch/internal/model"
)

// Transfer(address,address,uint256)
var transferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

const (
	nativeDecimals     = 18
	resubscribeBackoff = 5 * time.Second
)

// ChainClient is the subset of ethclient.Client the watcher needs.
// Narrowed so tests can run against a fake provider.
type ChainClient interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Alerter delivers a rendered notification for one detected transaction.
type Alerter interface {
	SendTransactionAlert(ctx context.Context, to, walletLabel string, tx model.TransactionEvent) error
}

// NotificationRecorder is notified after each successful alert dispatch.
// The watcher never writes registry state itself.
type NotificationRecorder interface {
	RecordNotification(id string, at time.Time)
}

// addressEntry holds the live subscriptions for one watched address and
// the set of configs interested in it. Subscriptions are keyed by
// address so two configs on the same address share one pair of log
// subscriptions instead of duplicating them.
type addressEntry struct {
	address common.Address
	configs map[string]model.MonitorConfig
	cancel  context.CancelFunc
}

// ChainWatcher maintains per-address token-transfer subscriptions plus a
// single shared new-head subscription scanned for native transfers.
type ChainWatcher struct {
	client       ChainClient
	alerter      Alerter
	recorder     NotificationRecorder
	logger       *zap.Logger
	nativeSymbol string
	signer       types.Signer
	tokens       *tokenResolver

	mu      sync.Mutex
	entries map[common.Address]*addressEntry
	byID    map[string]common.Address

	rootCtx context.Context
	cancel  context.CancelFunc
	headWg  sync.WaitGroup
}

func NewChainWatcher(client ChainClient, alerter Alerter, recorder NotificationRecorder, chainID int64, nativeSymbol string, logger *zap.Logger) *ChainWatcher {
	return &ChainWatcher{
		client:       client,
		alerter:      alerter,
		recorder:     recorder,
		logger:       logger,
		nativeSymbol: nativeSymbol,
		signer:       types.LatestSignerForChainID(big.NewInt(chainID)),
		tokens:       newTokenResolver(client, logger),
		entries:      make(map[common.Address]*addressEntry),
		byID:         make(map[string]common.Address),
	}
}

// Start launches the shared new-head loop. It must be called once before
// Watch.
func (w *ChainWatcher) Start(ctx context.Context) {
	w.rootCtx, w.cancel = context.WithCancel(ctx)

	w.headWg.Add(1)
	go w.headLoop(w.rootCtx)
}

// Close cancels every subscription and waits for the head loop to exit.
func (w *ChainWatcher) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.headWg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range w.entries {
		entry.cancel()
	}
	w.entries = make(map[common.Address]*addressEntry)
	w.byID = make(map[string]common.Address)
}

// Watch registers a config. Re-invoking with an id that is already
// watched is a no-op. The first config on an address establishes the
// address's log subscriptions; later configs fan out from them.
func (w *ChainWatcher) Watch(cfg model.MonitorConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.byID[cfg.ID]; exists {
		w.logger.Info("Watcher already exists", zap.String("id", cfg.ID))
		return
	}

	addr := common.HexToAddress(cfg.Address)
	w.byID[cfg.ID] = addr

	if entry, exists := w.entries[addr]; exists {
		entry.configs[cfg.ID] = cfg
		w.logger.Info("Joined existing address subscription",
			zap.String("id", cfg.ID),
			zap.String("address", cfg.Address))
		return
	}

	entryCtx, entryCancel := context.WithCancel(w.rootCtx)
	entry := &addressEntry{
		address: addr,
		configs: map[string]model.MonitorConfig{cfg.ID: cfg},
		cancel:  entryCancel,
	}
	w.entries[addr] = entry

	w.logger.Info("Starting address subscriptions",
		zap.String("id", cfg.ID),
		zap.String("address", cfg.Address))

	go w.logLoop(entryCtx, addr)
}

// Unwatch removes a config and releases the address's subscriptions when
// no other config is interested in it. Unknown ids are a no-op.
func (w *ChainWatcher) Unwatch(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	addr, ok := w.byID[id]
	if !ok {
		return
	}
	delete(w.byID, id)

	entry, ok := w.entries[addr]
	if !ok {
		return
	}
	delete(entry.configs, id)

	if len(entry.configs) == 0 {
		entry.cancel()
		delete(w.entries, addr)
		w.logger.Info("Released address subscriptions",
			zap.String("id", id),
			zap.String("address", addr.Hex()))
		return
	}

	w.logger.Info("Stopped watching", zap.String("id", id))
}

// logLoop runs the two transfer subscriptions (address as sender,
// address as receiver) for one address, re-establishing them with
// backoff on subscription errors.
func (w *ChainWatcher) logLoop(ctx context.Context, addr common.Address) {
	addrTopic := common.BytesToHash(addr.Bytes())

	outQuery := ethereum.FilterQuery{
		Topics: [][]common.Hash{{transferEventSig}, {addrTopic}},
	}
	inQuery := ethereum.FilterQuery{
		Topics: [][]common.Hash{{transferEventSig}, nil, {addrTopic}},
	}

	for {
		if ctx.Err() != nil {
			return
		}

		outCh := make(chan types.Log)
		inCh := make(chan types.Log)

		outSub, err := w.client.SubscribeFilterLogs(ctx, outQuery, outCh)
		if err != nil {
			w.logger.Error("Failed to subscribe outgoing transfers",
				zap.String("address", addr.Hex()), zap.Error(err))
			if !w.sleep(ctx, resubscribeBackoff) {
				return
			}
			continue
		}

		inSub, err := w.client.SubscribeFilterLogs(ctx, inQuery, inCh)
		if err != nil {
			outSub.Unsubscribe()
			w.logger.Error("Failed to subscribe incoming transfers",
				zap.String("address", addr.Hex()), zap.Error(err))
			if !w.sleep(ctx, resubscribeBackoff) {
				return
			}
			continue
		}

		if !w.consumeLogs(ctx, addr, outCh, inCh, outSub, inSub) {
			return
		}

		// Subscription dropped, re-establish after backoff.
		if !w.sleep(ctx, resubscribeBackoff) {
			return
		}
	}
}

// consumeLogs processes both log streams until cancellation (returns
// false) or a subscription error (returns true to trigger resubscribe).
func (w *ChainWatcher) consumeLogs(ctx context.Context, addr common.Address, outCh, inCh chan types.Log, outSub, inSub ethereum.Subscription) bool {
	defer outSub.Unsubscribe()
	defer inSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return false
		case eventLog := <-outCh:
			w.handleTransferLog(ctx, addr, eventLog, model.DirectionOutgoing)
		case eventLog := <-inCh:
			w.handleTransferLog(ctx, addr, eventLog, model.DirectionIncoming)
		case err := <-outSub.Err():
			w.logger.Warn("Outgoing transfer subscription error",
				zap.String("address", addr.Hex()), zap.Error(err))
			return true
		case err := <-inSub.Err():
			w.logger.Warn("Incoming transfer subscription error",
				zap.String("address", addr.Hex()), zap.Error(err))
			return true
		}
	}
}

// handleTransferLog turns one ERC-20 Transfer log into a transaction
// event and dispatches it. Failures are contained so a bad log never
// blocks the rest of the stream.
func (w *ChainWatcher) handleTransferLog(ctx context.Context, addr common.Address, eventLog types.Log, direction model.Direction) {
	if len(eventLog.Topics) < 3 {
		w.logger.Warn("Skipping transfer log with unexpected topics",
			zap.String("tx_hash", eventLog.TxHash.Hex()),
			zap.Int("topics", len(eventLog.Topics)))
		return
	}

	from := common.BytesToAddress(eventLog.Topics[1].Bytes())
	to := common.BytesToAddress(eventLog.Topics[2].Bytes())
	value := new(big.Int).SetBytes(eventLog.Data)

	// A self-transfer matches both topic filters and arrives on both
	// subscriptions. The to-side match wins, so drop the outgoing copy
	// and let the incoming subscription report it.
	if direction == model.DirectionOutgoing && to == addr {
		return
	}

	info := w.tokens.Resolve(ctx, eventLog.Address)

	tx := model.TransactionEvent{
		Hash:      eventLog.TxHash.Hex(),
		From:      from.Hex(),
		To:        to.Hex(),
		Value:     format.Units(value, info.Decimals),
		Token:     info.Symbol,
		Timestamp: time.Now().UTC(),
		Direction: direction,
	}

	w.dispatch(ctx, addr, tx)
}

// headLoop subscribes to new heads and scans each block once for native
// transfers touching any watched address, re-subscribing with backoff on
// errors.
func (w *ChainWatcher) headLoop(ctx context.Context) {
	defer w.headWg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		headCh := make(chan *types.Header)
		sub, err := w.client.SubscribeNewHead(ctx, headCh)
		if err != nil {
			w.logger.Error("Failed to subscribe new heads", zap.Error(err))
			if !w.sleep(ctx, resubscribeBackoff) {
				return
			}
			continue
		}

		if !w.consumeHeads(ctx, headCh, sub) {
			return
		}

		if !w.sleep(ctx, resubscribeBackoff) {
			return
		}
	}
}

func (w *ChainWatcher) consumeHeads(ctx context.Context, headCh chan *types.Header, sub ethereum.Subscription) bool {
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return false
		case header := <-headCh:
			w.handleHead(ctx, header)
		case err := <-sub.Err():
			w.logger.Warn("New head subscription error", zap.Error(err))
			return true
		}
	}
}

func (w *ChainWatcher) handleHead(ctx context.Context, header *types.Header) {
	w.mu.Lock()
	watching := len(w.entries) > 0
	w.mu.Unlock()
	if !watching {
		return
	}

	block, err := w.client.BlockByHash(ctx, header.Hash())
	if err != nil {
		w.logger.Error("Failed to fetch block",
			zap.String("block_hash", header.Hash().Hex()),
			zap.Error(err))
		return
	}

	w.scanTransactions(ctx, block.Time(), block.Transactions())
}

// scanTransactions looks for nonzero native transfers touching any
// watched address. A to-side match takes precedence, so a self-transfer
// reports as incoming.
func (w *ChainWatcher) scanTransactions(ctx context.Context, blockTime uint64, txs types.Transactions) {
	timestamp := time.Unix(int64(blockTime), 0).UTC()

	for _, tx := range txs {
		if tx.Value().Sign() == 0 {
			continue
		}

		to := tx.To()
		from, err := types.Sender(w.signer, tx)
		if err != nil {
			w.logger.Warn("Failed to recover transaction sender",
				zap.String("tx_hash", tx.Hash().Hex()),
				zap.Error(err))
			from = common.Address{}
		}

		toStr := ""
		if to != nil {
			toStr = to.Hex()
		}

		event := model.TransactionEvent{
			Hash:      tx.Hash().Hex(),
			From:      from.Hex(),
			To:        toStr,
			Value:     format.Units(tx.Value(), nativeDecimals),
			Token:     w.nativeSymbol,
			Timestamp: timestamp,
		}

		if to != nil && w.isWatched(*to) {
			event.Direction = model.DirectionIncoming
			go w.dispatch(ctx, *to, event)
		}
		if w.isWatched(from) && (to == nil || *to != from) {
			outgoing := event
			outgoing.Direction = model.DirectionOutgoing
			go w.dispatch(ctx, from, outgoing)
		}
	}
}

func (w *ChainWatcher) isWatched(addr common.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[addr]
	return ok
}

// dispatch fans one event out to every config interested in the address
// and reports successes back to the recorder.
func (w *ChainWatcher) dispatch(ctx context.Context, addr common.Address, tx model.TransactionEvent) {
	w.mu.Lock()
	entry, ok := w.entries[addr]
	if !ok {
		w.mu.Unlock()
		return
	}
	configs := make([]model.MonitorConfig, 0, len(entry.configs))
	for _, cfg := range entry.configs {
		configs = append(configs, cfg)
	}
	w.mu.Unlock()

	for _, cfg := range configs {
		if err := w.alerter.SendTransactionAlert(ctx, cfg.Email, cfg.Label, tx); err != nil {
			w.logger.Error("Failed to dispatch alert",
				zap.String("id", cfg.ID),
				zap.String("tx_hash", tx.Hash),
				zap.Error(err))
			continue
		}

		w.recorder.RecordNotification(cfg.ID, time.Now().UTC())
	}
}

func (w *ChainWatcher) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
