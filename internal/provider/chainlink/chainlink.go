// Package chainlink reads on-chain Chainlink price feeds (XAU/USD, XAG/USD)
// as a last-resort quote source. The feeds publish a spot answer only, so
// the adapter serves no change fields and no history.
package chainlink

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metalpulse/internal/provider"
	"metalpulse/internal/series"
)

const name = "chainlink"

const aggregatorABIJSON = `[
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// Options parameterise the on-chain adapter. FeedAddresses maps a metal
// symbol to its aggregator contract address.
type Options struct {
	RPCURL        string
	FeedAddresses map[string]string
	Timeout       time.Duration
}

// Adapter reads latest answers from Chainlink aggregator contracts.
type Adapter struct {
	opts   Options
	logger zerolog.Logger

	clientMux sync.Mutex
	client    *ethclient.Client
}

// New builds the Chainlink adapter.
func New(opts Options, logger zerolog.Logger) *Adapter {
	return &Adapter{opts: opts, logger: logger.With().Str("component", "chainlink_adapter").Logger()}
}

func (a *Adapter) Name() string { return name }

// FetchQuote reads latestRoundData for the symbol's feed. Change fields are
// zero: the feed carries no previous-day reference.
func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	if a.opts.RPCURL == "" {
		return provider.Quote{}, &provider.FetchError{Provider: name, Err: errors.New("rpc url not configured")}
	}

	feed, ok := a.opts.FeedAddresses[strings.ToUpper(symbol)]
	if !ok || feed == "" {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "no feed configured for " + symbol}
	}

	timeout := a.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := a.getClient(ctx)
	if err != nil {
		return provider.Quote{}, &provider.FetchError{Provider: name, Err: err}
	}

	addr := common.HexToAddress(feed)

	decimals, err := a.feedDecimals(ctx, client, addr)
	if err != nil {
		return provider.Quote{}, err
	}

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return provider.Quote{}, &provider.FetchError{Provider: name, Err: err}
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return provider.Quote{}, &provider.FetchError{Provider: name, Err: err}
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "undecodable latestRoundData output"}
	}
	if len(outputs) != 5 {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "unexpected latestRoundData arity"}
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return provider.Quote{}, &provider.ParseError{Provider: name, Reason: "non-positive answer for " + symbol}
	}

	updatedAt := ""
	if ts, ok := outputs[3].(*big.Int); ok && ts.Sign() > 0 {
		updatedAt = time.Unix(ts.Int64(), 0).UTC().Format("2006-01-02")
	}

	price := decimal.NewFromBigInt(answer, -decimals).Round(2)

	return provider.Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         price,
		Change:        decimal.Zero,
		ChangePercent: decimal.Zero,
		High:          price,
		Low:           price,
		EffectiveDate: updatedAt,
	}, nil
}

// FetchSeries is unsupported: feeds expose the latest round only.
func (a *Adapter) FetchSeries(ctx context.Context, symbol string, days int) (series.Series, error) {
	return nil, &provider.FetchError{Provider: name, Err: provider.ErrHistoryUnsupported}
}

func (a *Adapter) feedDecimals(ctx context.Context, client *ethclient.Client, addr common.Address) (int32, error) {
	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return 0, &provider.FetchError{Provider: name, Err: err}
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return 0, &provider.FetchError{Provider: name, Err: err}
	}

	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil || len(outputs) != 1 {
		return 0, &provider.ParseError{Provider: name, Reason: "undecodable decimals output"}
	}

	d, ok := outputs[0].(uint8)
	if !ok {
		return 0, &provider.ParseError{Provider: name, Reason: "unexpected decimals type"}
	}
	return int32(d), nil
}

func (a *Adapter) getClient(ctx context.Context) (*ethclient.Client, error) {
	a.clientMux.Lock()
	defer a.clientMux.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, err := ethclient.DialContext(ctx, a.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

var _ provider.Adapter = (*Adapter)(nil)
