package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const erc20MetadataABI = `[
	{
		"type": "function",
		"name": "symbol",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"internalType": "string", "name": "", "type": "string"}]
	},
	{
		"type": "function",
		"name": "decimals",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}]
	}
]`

var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20MetadataABI))
	if err != nil {
		panic("failed to parse ERC-20 metadata ABI: " + err.Error())
	}
	return parsed
}()

// TokenInfo is the resolved metadata of one token contract.
type TokenInfo struct {
	Symbol   string
	Decimals int
}

// fallbackToken is substituted when metadata resolution fails so one bad
// token contract never blocks a log batch.
var fallbackToken = TokenInfo{Symbol: "UNKNOWN", Decimals: 18}

// tokenResolver resolves and caches ERC-20 symbol/decimals pairs.
// Only successful lookups are cached; failures fall back to UNKNOWN/18
// and are retried on the next log for the same token.
type tokenResolver struct {
	client ChainClient
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[common.Address]TokenInfo
}

func newTokenResolver(client ChainClient, logger *zap.Logger) *tokenResolver {
	return &tokenResolver{
		client: client,
		logger: logger,
		cache:  make(map[common.Address]TokenInfo),
	}
}

func (r *tokenResolver) Resolve(ctx context.Context, token common.Address) TokenInfo {
	r.mu.RLock()
	info, ok := r.cache[token]
	r.mu.RUnlock()
	if ok {
		return info
	}

	info, err := r.lookup(ctx, token)
	if err != nil {
		r.logger.Warn("Failed to resolve token metadata",
			zap.String("token", token.Hex()),
			zap.Error(err))
		return fallbackToken
	}

	r.mu.Lock()
	r.cache[token] = info
	r.mu.Unlock()

	return info
}

func (r *tokenResolver) lookup(ctx context.Context, token common.Address) (TokenInfo, error) {
	symbolData, err := erc20ABI.Pack("symbol")
	if err != nil {
		return TokenInfo{}, fmt.Errorf("failed to pack symbol call: %w", err)
	}

	symbolOut, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolData}, nil)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("symbol call failed: %w", err)
	}

	symbolRes, err := erc20ABI.Unpack("symbol", symbolOut)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("failed to unpack symbol: %w", err)
	}
	symbol, ok := symbolRes[0].(string)
	if !ok {
		return TokenInfo{}, fmt.Errorf("unexpected symbol type %T", symbolRes[0])
	}

	decimalsData, err := erc20ABI.Pack("decimals")
	if err != nil {
		return TokenInfo{}, fmt.Errorf("failed to pack decimals call: %w", err)
	}

	decimalsOut, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsData}, nil)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("decimals call failed: %w", err)
	}

	decimalsRes, err := erc20ABI.Unpack("decimals", decimalsOut)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("failed to unpack decimals: %w", err)
	}
	decimals, ok := decimalsRes[0].(uint8)
	if !ok {
		return TokenInfo{}, fmt.Errorf("unexpected decimals type %T", decimalsRes[0])
	}

	return TokenInfo{Symbol: symbol, Decimals: int(decimals)}, nil
}
