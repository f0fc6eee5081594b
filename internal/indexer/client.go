// Package indexer implements the GraphQL client for the subgraph that indexes
// the router contract. It supplies market metadata and parimutuel deposit
// events; live pool values come from the chain read layer, never from here.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// Client is a GraphQL client for the market subgraph.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new indexer client for the given subgraph endpoint.
func NewClient(graphqlURL, apiKey string) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// rawMarket is the subgraph's market entity shape. BigInt fields arrive as
// decimal strings.
type rawMarket struct {
	ID             string  `json:"id"`
	Question       string  `json:"question"`
	Slug           string  `json:"slug"`
	MarketType     string  `json:"marketType"`
	OutcomeNo      string  `json:"outcomeNo"`
	OutcomeYes     string  `json:"outcomeYes"`
	StakeToken     string  `json:"stakeToken"`
	FeeBps         string  `json:"feeBps"`
	CreatorFeeBps  string  `json:"creatorFeeBps"`
	TimeDecayBps   string  `json:"timeDecayBps"`
	CreatedAt      string  `json:"createdAt"`
	CutoffTime     string  `json:"cutoffTime"`
	Resolved       bool    `json:"resolved"`
	WinningOutcome *string `json:"winningOutcome"`
	Volume         string  `json:"volume"`
}

// FetchMarkets pages through markets updated at or after since, returning up
// to first rows ordered by creation time.
func (c *Client) FetchMarkets(ctx context.Context, since time.Time, first int) ([]domain.Market, error) {
	query := `
		query Markets($since: BigInt!, $first: Int!) {
			markets(
				first: $first
				orderBy: createdAt
				orderDirection: asc
				where: { updatedAt_gte: $since }
			) {
				id
				question
				slug
				marketType
				outcomeNo
				outcomeYes
				stakeToken
				feeBps
				creatorFeeBps
				timeDecayBps
				createdAt
				cutoffTime
				resolved
				winningOutcome
				volume
			}
		}
	`

	variables := map[string]any{
		"since": fmt.Sprintf("%d", since.Unix()),
		"first": first,
	}

	respData, err := c.doQuery(ctx, query, variables)
	if err != nil {
		return nil, fmt.Errorf("indexer: fetch markets: %w", err)
	}

	var result struct {
		Markets []rawMarket `json:"markets"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("indexer: decode markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(result.Markets))
	for _, raw := range result.Markets {
		m, err := decodeMarket(raw)
		if err != nil {
			return nil, fmt.Errorf("indexer: market %s: %w", raw.ID, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FetchDeposits queries parimutuel deposit events at or after since.
func (c *Client) FetchDeposits(ctx context.Context, since time.Time, first int) ([]domain.Deposit, error) {
	query := `
		query Deposits($since: BigInt!, $first: Int!) {
			deposits(
				first: $first
				orderBy: timestamp
				orderDirection: asc
				where: { timestamp_gte: $since }
			) {
				id
				market
				account
				side
				amount
				transactionHash
				timestamp
			}
		}
	`

	variables := map[string]any{
		"since": fmt.Sprintf("%d", since.Unix()),
		"first": first,
	}

	respData, err := c.doQuery(ctx, query, variables)
	if err != nil {
		return nil, fmt.Errorf("indexer: fetch deposits: %w", err)
	}

	var result struct {
		Deposits []struct {
			ID              string `json:"id"`
			Market          string `json:"market"`
			Account         string `json:"account"`
			Side            int    `json:"side"`
			Amount          string `json:"amount"`
			TransactionHash string `json:"transactionHash"`
			Timestamp       string `json:"timestamp"`
		} `json:"deposits"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("indexer: decode deposits: %w", err)
	}

	deposits := make([]domain.Deposit, 0, len(result.Deposits))
	for _, e := range result.Deposits {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("indexer: deposit %s: bad amount %q: %w", e.ID, e.Amount, err)
		}
		ts, err := parseUnix(e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("indexer: deposit %s: %w", e.ID, err)
		}

		side := domain.OutcomeNo
		if e.Side == 1 {
			side = domain.OutcomeYes
		}

		deposits = append(deposits, domain.Deposit{
			ID:        e.ID,
			MarketID:  strings.ToLower(e.Market),
			Account:   strings.ToLower(e.Account),
			Side:      side,
			Amount:    amount,
			TxHash:    e.TransactionHash,
			Timestamp: ts,
		})
	}
	return deposits, nil
}

// FetchLatestBlock returns the latest block number indexed by the subgraph,
// used to monitor indexing lag against the chain head.
func (c *Client) FetchLatestBlock(ctx context.Context) (int64, error) {
	query := `
		query LatestBlock {
			_meta {
				block {
					number
				}
			}
		}
	`

	respData, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("indexer: fetch latest block: %w", err)
	}

	var result struct {
		Meta struct {
			Block struct {
				Number int64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return 0, fmt.Errorf("indexer: decode latest block: %w", err)
	}

	return result.Meta.Block.Number, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// decodeMarket converts a subgraph market row into the domain type.
func decodeMarket(raw rawMarket) (domain.Market, error) {
	marketType := domain.MarketType(raw.MarketType)
	if !marketType.Valid() {
		return domain.Market{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMarketType, raw.MarketType)
	}

	feeBps, err := parseInt(raw.FeeBps)
	if err != nil {
		return domain.Market{}, fmt.Errorf("bad feeBps %q: %w", raw.FeeBps, err)
	}
	creatorFeeBps, err := parseInt(raw.CreatorFeeBps)
	if err != nil {
		return domain.Market{}, fmt.Errorf("bad creatorFeeBps %q: %w", raw.CreatorFeeBps, err)
	}
	timeDecayBps, err := parseInt(raw.TimeDecayBps)
	if err != nil {
		return domain.Market{}, fmt.Errorf("bad timeDecayBps %q: %w", raw.TimeDecayBps, err)
	}

	createdAt, err := parseUnix(raw.CreatedAt)
	if err != nil {
		return domain.Market{}, err
	}
	cutoffTime, err := parseUnix(raw.CutoffTime)
	if err != nil {
		return domain.Market{}, err
	}

	volume := decimal.Zero
	if raw.Volume != "" {
		volume, err = decimal.NewFromString(raw.Volume)
		if err != nil {
			return domain.Market{}, fmt.Errorf("bad volume %q: %w", raw.Volume, err)
		}
	}

	m := domain.Market{
		ID:            strings.ToLower(raw.ID),
		Question:      raw.Question,
		Slug:          raw.Slug,
		MarketType:    marketType,
		Outcomes:      [2]string{raw.OutcomeNo, raw.OutcomeYes},
		StakeToken:    strings.ToLower(raw.StakeToken),
		FeeBps:        feeBps,
		CreatorFeeBps: creatorFeeBps,
		TimeDecayBps:  timeDecayBps,
		CreatedAt:     createdAt,
		CutoffTime:    cutoffTime,
		Resolved:      raw.Resolved,
		Volume:        volume,
		Status:        domain.MarketStatusActive,
	}

	if cutoffTime.Before(time.Now().UTC()) {
		m.Status = domain.MarketStatusClosed
	}
	if raw.Resolved {
		m.Status = domain.MarketStatusResolved
		if raw.WinningOutcome != nil {
			winner, err := domain.ParseOutcome(*raw.WinningOutcome)
			if err != nil {
				return domain.Market{}, err
			}
			m.Winner = &winner
		}
	}

	return m, nil
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseUnix(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// doQuery executes a GraphQL query against the subgraph endpoint and returns
// the raw "data" field from the response.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return gqlResp.Data, nil
}
