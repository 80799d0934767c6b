package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"aave-hf-watcher/internal/chain"
	"aave-hf-watcher/internal/format"
)

const (
	aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

	methodLatestRoundData = "latestRoundData"
	methodDecimals        = "decimals"
)

var (
	aggregatorABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse Chainlink aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// Chainlink reads USD prices from Chainlink aggregators.
type Chainlink struct {
	caller  chain.Caller
	timeout time.Duration
	logger  zerolog.Logger

	decimalsMux sync.Mutex
	decimals    map[common.Address]int32
}

// NewChainlink builds a price reader on top of a shared RPC caller.
func NewChainlink(caller chain.Caller, timeout time.Duration, logger zerolog.Logger) *Chainlink {
	return &Chainlink{
		caller:   caller,
		timeout:  timeout,
		logger:   logger.With().Str("component", "price_fetcher").Logger(),
		decimals: make(map[common.Address]int32),
	}
}

// FetchPrices reads both feeds concurrently.
func (c *Chainlink) FetchPrices(ctx context.Context, feeds FeedPair) (Prices, error) {
	if c.caller == nil {
		return Prices{}, errors.New("rpc client not configured")
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var prices Prices
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.fetchPrice(gctx, feeds.Primary)
		prices.Primary = p
		return err
	})
	g.Go(func() error {
		p, err := c.fetchPrice(gctx, feeds.Secondary)
		prices.Secondary = p
		return err
	})
	if err := g.Wait(); err != nil {
		return Prices{}, err
	}
	return prices, nil
}

func (c *Chainlink) fetchPrice(ctx context.Context, feed Feed) (Price, error) {
	if feed.Address == (common.Address{}) {
		return Price{}, fmt.Errorf("%s price feed address not configured", feed.Symbol)
	}

	decimals, err := c.feedDecimals(ctx, feed)
	if err != nil {
		return Price{}, err
	}

	outputs, err := c.call(ctx, feed.Address, methodLatestRoundData)
	if err != nil {
		return Price{}, fmt.Errorf("%s: %w", feed.Symbol, err)
	}
	if len(outputs) != 5 {
		return Price{}, fmt.Errorf("%s: unexpected %s response", feed.Symbol, methodLatestRoundData)
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return Price{}, fmt.Errorf("%s: failed to decode answer", feed.Symbol)
	}
	if answer.Sign() <= 0 {
		return Price{}, fmt.Errorf("%s: non-positive answer %s", feed.Symbol, answer.String())
	}

	var updatedAt time.Time
	if ts, ok := outputs[3].(*big.Int); ok && ts.IsInt64() {
		updatedAt = time.Unix(ts.Int64(), 0).UTC()
	}

	price := format.FromFixed(answer, decimals)
	return Price{
		Symbol:         feed.Symbol,
		Price:          price,
		FormattedPrice: format.FormatCurrency(price),
		UpdatedAt:      updatedAt,
	}, nil
}

func (c *Chainlink) feedDecimals(ctx context.Context, feed Feed) (int32, error) {
	c.decimalsMux.Lock()
	d, ok := c.decimals[feed.Address]
	c.decimalsMux.Unlock()
	if ok {
		return d, nil
	}

	outputs, err := c.call(ctx, feed.Address, methodDecimals)
	if err != nil {
		return 0, fmt.Errorf("%s decimals: %w", feed.Symbol, err)
	}
	if len(outputs) != 1 {
		return 0, fmt.Errorf("%s: unexpected decimals response", feed.Symbol)
	}
	raw, ok := outputs[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%s: failed to decode decimals", feed.Symbol)
	}

	c.decimalsMux.Lock()
	c.decimals[feed.Address] = int32(raw)
	c.decimalsMux.Unlock()
	return int32(raw), nil
}

func (c *Chainlink) call(ctx context.Context, addr common.Address, method string) ([]interface{}, error) {
	payload, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, err
	}
	res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return aggregatorABI.Unpack(method, res)
}

var _ PriceSource = (*Chainlink)(nil)
