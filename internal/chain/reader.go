package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// marketABIJSON covers the read surface shared by both market implementations
// deployed through the router. CPMM markets expose getReserves, parimutuel
// markets expose getPools; everything else is common.
const marketABIJSON = `[
	{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"reserveYes","type":"uint256"},{"name":"reserveNo","type":"uint256"}]},
	{"name":"getPools","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"poolYes","type":"uint256"},{"name":"poolNo","type":"uint256"}]},
	{"name":"cutoffTime","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"feeBps","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"timeDecayBps","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"resolved","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"name":"winningOutcome","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// routerABIJSON is the read surface of the router that deploys markets.
const routerABIJSON = `[
	{"name":"marketCount","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"isMarket","type":"function","stateMutability":"view","inputs":[{"name":"market","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	marketABI = mustParseABI(marketABIJSON)
	routerABI = mustParseABI(routerABIJSON)
)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("chain: parse ABI: %v", err))
	}
	return parsed
}

// MarketState is the on-chain lifecycle view of a single market contract.
type MarketState struct {
	CutoffTime   time.Time
	FeeBps       int64
	TimeDecayBps int64
	Resolved     bool
	Winner       domain.Outcome
}

// Reader decodes router and market contract state into domain values. It
// hands the pricing layer plain numbers; nothing downstream sees ABI types.
type Reader struct {
	client *Client
	router common.Address
}

// NewReader creates a Reader for the given router address.
func NewReader(client *Client, routerAddress string) (*Reader, error) {
	if !common.IsHexAddress(routerAddress) {
		return nil, fmt.Errorf("chain: invalid router address %q", routerAddress)
	}
	return &Reader{
		client: client,
		router: common.HexToAddress(routerAddress),
	}, nil
}

// call packs a view method, executes eth_call against addr, and unpacks the
// outputs.
func (r *Reader) call(ctx context.Context, contract abi.ABI, addr common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	raw, err := r.client.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s on %s: %w", method, addr.Hex(), err)
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

// MarketCount returns the number of markets the router has deployed.
func (r *Reader) MarketCount(ctx context.Context) (int64, error) {
	out, err := r.call(ctx, routerABI, r.router, "marketCount")
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("chain: marketCount: unexpected output type %T", out[0])
	}
	return n.Int64(), nil
}

// IsMarket reports whether addr was deployed by the router. Used to reject
// indexer rows that point at foreign contracts.
func (r *Reader) IsMarket(ctx context.Context, addr string) (bool, error) {
	if !common.IsHexAddress(addr) {
		return false, fmt.Errorf("chain: invalid market address %q", addr)
	}
	out, err := r.call(ctx, routerABI, r.router, "isMarket", common.HexToAddress(addr))
	if err != nil {
		return false, err
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("chain: isMarket: unexpected output type %T", out[0])
	}
	return ok, nil
}

// PoolSnapshot reads the live pools/reserves of a market, stamped with the
// node's latest block number.
func (r *Reader) PoolSnapshot(ctx context.Context, market domain.Market) (domain.PoolSnapshot, error) {
	if !common.IsHexAddress(market.ID) {
		return domain.PoolSnapshot{}, fmt.Errorf("chain: invalid market address %q", market.ID)
	}
	addr := common.HexToAddress(market.ID)

	method := "getPools"
	if market.MarketType == domain.MarketTypeCPMM {
		method = "getReserves"
	}

	block, err := r.client.BlockNumber(ctx)
	if err != nil {
		return domain.PoolSnapshot{}, err
	}

	out, err := r.call(ctx, marketABI, addr, method)
	if err != nil {
		return domain.PoolSnapshot{}, err
	}

	yes, err := bigOut(out, 0, method)
	if err != nil {
		return domain.PoolSnapshot{}, err
	}
	no, err := bigOut(out, 1, method)
	if err != nil {
		return domain.PoolSnapshot{}, err
	}

	return domain.PoolSnapshot{
		MarketID:    market.ID,
		MarketType:  market.MarketType,
		Yes:         decimal.NewFromBigInt(yes, 0),
		No:          decimal.NewFromBigInt(no, 0),
		BlockNumber: block,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// MarketState reads the lifecycle fields of a market contract.
func (r *Reader) MarketState(ctx context.Context, marketID string) (MarketState, error) {
	if !common.IsHexAddress(marketID) {
		return MarketState{}, fmt.Errorf("chain: invalid market address %q", marketID)
	}
	addr := common.HexToAddress(marketID)

	var state MarketState

	out, err := r.call(ctx, marketABI, addr, "cutoffTime")
	if err != nil {
		return MarketState{}, err
	}
	cutoff, err := bigOut(out, 0, "cutoffTime")
	if err != nil {
		return MarketState{}, err
	}
	state.CutoffTime = time.Unix(cutoff.Int64(), 0).UTC()

	out, err = r.call(ctx, marketABI, addr, "feeBps")
	if err != nil {
		return MarketState{}, err
	}
	fee, err := bigOut(out, 0, "feeBps")
	if err != nil {
		return MarketState{}, err
	}
	state.FeeBps = fee.Int64()

	out, err = r.call(ctx, marketABI, addr, "timeDecayBps")
	if err != nil {
		return MarketState{}, err
	}
	decay, err := bigOut(out, 0, "timeDecayBps")
	if err != nil {
		return MarketState{}, err
	}
	state.TimeDecayBps = decay.Int64()

	out, err = r.call(ctx, marketABI, addr, "resolved")
	if err != nil {
		return MarketState{}, err
	}
	resolved, ok := out[0].(bool)
	if !ok {
		return MarketState{}, fmt.Errorf("chain: resolved: unexpected output type %T", out[0])
	}
	state.Resolved = resolved

	if resolved {
		out, err = r.call(ctx, marketABI, addr, "winningOutcome")
		if err != nil {
			return MarketState{}, err
		}
		winner, ok := out[0].(uint8)
		if !ok {
			return MarketState{}, fmt.Errorf("chain: winningOutcome: unexpected output type %T", out[0])
		}
		state.Winner = domain.Outcome(winner)
	}

	return state, nil
}

// bigOut extracts output i as a *big.Int with a descriptive error.
func bigOut(out []any, i int, method string) (*big.Int, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("chain: %s: missing output %d", method, i)
	}
	n, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s: unexpected output type %T", method, out[i])
	}
	return n, nil
}
