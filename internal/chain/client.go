// Package chain implements the on-chain read layer: JSON-RPC connectivity and
// ABI-decoded views of router and market contract state. It is strictly
// read-only — the service never signs or submits transactions.
package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection and verifies it is pointed at the
// expected chain.
type Client struct {
	eth     *ethclient.Client
	chainID int64
}

// Dial connects to the JSON-RPC endpoint and confirms the node's chain ID
// matches the configured one, so a misconfigured endpoint fails fast instead
// of silently serving pools from the wrong network.
func Dial(ctx context.Context, rpcURL string, chainID int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	remote, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: query chain id: %w", err)
	}
	if remote.Int64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("chain: endpoint %s serves chain %d, expected %d", rpcURL, remote.Int64(), chainID)
	}

	return &Client{eth: eth, chainID: chainID}, nil
}

// ChainID returns the verified chain ID.
func (c *Client) ChainID() int64 {
	return c.chainID
}

// BlockNumber returns the latest block number seen by the node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// Underlying returns the raw ethclient for sub-components that need direct
// access to the driver.
func (c *Client) Underlying() *ethclient.Client {
	return c.eth
}

// Close shuts down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
