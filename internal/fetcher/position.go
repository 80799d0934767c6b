package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"aave-hf-watcher/internal/chain"
	"aave-hf-watcher/internal/format"
)

const (
	poolABIJSON = `[{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserAccountData","outputs":[{"internalType":"uint256","name":"totalCollateralBase","type":"uint256"},{"internalType":"uint256","name":"totalDebtBase","type":"uint256"},{"internalType":"uint256","name":"availableBorrowsBase","type":"uint256"},{"internalType":"uint256","name":"currentLiquidationThreshold","type":"uint256"},{"internalType":"uint256","name":"ltv","type":"uint256"},{"internalType":"uint256","name":"healthFactor","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	methodUserAccountData = "getUserAccountData"
)

var (
	poolABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		panic("failed to parse Aave pool ABI: " + err.Error())
	}
	poolABI = parsed
}

// PoolOptions parameterise the Aave pool reader.
type PoolOptions struct {
	PoolAddress common.Address
	Timeout     time.Duration
}

// Pool reads getUserAccountData from an Aave v3 Pool.
type Pool struct {
	opts   PoolOptions
	caller chain.Caller
	logger zerolog.Logger
	now    func() time.Time
}

// NewPool builds a position reader on top of a shared RPC caller.
func NewPool(opts PoolOptions, caller chain.Caller, logger zerolog.Logger) *Pool {
	return &Pool{
		opts:   opts,
		caller: caller,
		logger: logger.With().Str("component", "position_fetcher").Logger(),
		now:    time.Now,
	}
}

// FetchPosition reads and scales the wallet's account data.
func (p *Pool) FetchPosition(ctx context.Context, wallet common.Address) (Position, error) {
	if p.caller == nil {
		return Position{}, errors.New("rpc client not configured")
	}
	if p.opts.PoolAddress == (common.Address{}) {
		return Position{}, errors.New("pool contract address not configured")
	}

	ctx, cancel := withTimeout(ctx, p.opts.Timeout)
	defer cancel()

	payload, err := poolABI.Pack(methodUserAccountData, wallet)
	if err != nil {
		return Position{}, err
	}

	addr := p.opts.PoolAddress
	res, err := p.caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return Position{}, fmt.Errorf("call %s: %w", methodUserAccountData, err)
	}

	outputs, err := poolABI.Unpack(methodUserAccountData, res)
	if err != nil {
		return Position{}, fmt.Errorf("unpack %s: %w", methodUserAccountData, err)
	}
	if len(outputs) != 6 {
		return Position{}, fmt.Errorf("unexpected %s response: %d outputs", methodUserAccountData, len(outputs))
	}

	values := make([]*big.Int, len(outputs))
	for i, out := range outputs {
		v, ok := out.(*big.Int)
		if !ok {
			return Position{}, fmt.Errorf("failed to decode %s output %d", methodUserAccountData, i)
		}
		values[i] = v
	}

	blockNumber, err := p.caller.BlockNumber(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("block number unavailable")
		blockNumber = 0
	}

	return newPosition(wallet, values, blockNumber, p.now().UTC()), nil
}

func newPosition(wallet common.Address, v []*big.Int, blockNumber uint64, at time.Time) Position {
	collateral := format.BaseCurrency(v[0])
	debt := format.BaseCurrency(v[1])
	return Position{
		Wallet:               wallet,
		TotalCollateral:      collateral,
		TotalDebt:            debt,
		AvailableBorrows:     format.BaseCurrency(v[2]),
		LiquidationThreshold: format.Percent(v[3]),
		LoanToValue:          format.Percent(v[4]),
		HealthFactor:         format.HealthFactor(v[5]),
		Utilization:          format.Utilization(debt, collateral),
		BlockNumber:          blockNumber,
		FetchedAt:            at,
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

var _ PositionSource = (*Pool)(nil)
