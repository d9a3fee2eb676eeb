// Copyright 2024 The exodus Authors
// This file is part of the exodus library.
//
// The exodus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The exodus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the exodus library. If not, see <http://www.gnu.org/licenses/>.

// Package client is the thin JSON-RPC binding of the layer-1 surface the
// recovery depends on. Chain providers and connection management live with
// the deployment; this adapter only shapes requests and decodes results.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/zkrollup/exodus/common"
	"github.com/zkrollup/exodus/crypto"
	"github.com/zkrollup/exodus/recover"
)

const requestTimeout = 30 * time.Second

// Client implements recover.ChainClient over HTTP JSON-RPC.
type Client struct {
	url    string
	http   *http.Client
	nextID uint64
}

// Dial returns a client bound to the given endpoint.
func Dial(url string) *Client {
	return &Client{
		url: url,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(method string, result interface{}, params ...interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "rpc %s", method)
	}
	defer resp.Body.Close()
	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return errors.Wrapf(err, "rpc %s: decode response", method)
	}
	if decoded.Error != nil {
		return errors.Errorf("rpc %s: %d %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, result)
}

func parseHexUint(s string) (uint64, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return 0, errors.Errorf("invalid hex quantity %q", s)
	}
	return v.Uint64(), nil
}

// BlockNumber returns the chain head.
func (c *Client) BlockNumber() (uint64, error) {
	var raw string
	if err := c.call("eth_blockNumber", &raw); err != nil {
		return 0, err
	}
	return parseHexUint(raw)
}

type rpcLog struct {
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
}

// GetLogs fetches the contract's logs in [from, to] matching any of the
// given first topics.
func (c *Client) GetLogs(from, to uint64, contract common.Address, topics []common.Hash) ([]recover.Log, error) {
	topicStrings := make([]string, 0, len(topics))
	for _, topic := range topics {
		topicStrings = append(topicStrings, topic.Hex())
	}
	filter := map[string]interface{}{
		"fromBlock": fmt.Sprintf("0x%x", from),
		"toBlock":   fmt.Sprintf("0x%x", to),
		"address":   contract.Hex(),
		"topics":    []interface{}{topicStrings},
	}
	var raw []rpcLog
	if err := c.call("eth_getLogs", &raw, filter); err != nil {
		return nil, err
	}
	logs := make([]recover.Log, 0, len(raw))
	for _, entry := range raw {
		blockNumber, err := parseHexUint(entry.BlockNumber)
		if err != nil {
			return nil, err
		}
		decoded := recover.Log{
			Data:        common.FromHex(entry.Data),
			BlockNumber: blockNumber,
			TxHash:      common.HexToHash(entry.TransactionHash),
		}
		for _, topic := range entry.Topics {
			decoded.Topics = append(decoded.Topics, common.HexToHash(topic))
		}
		logs = append(logs, decoded)
	}
	return logs, nil
}

type rpcTransaction struct {
	BlockNumber string `json:"blockNumber"`
	Input       string `json:"input"`
}

// GetTransaction fetches a transaction by hash.
func (c *Client) GetTransaction(hash common.Hash) (*recover.TransactionInfo, error) {
	var raw *rpcTransaction
	if err := c.call("eth_getTransactionByHash", &raw, hash.Hex()); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Errorf("transaction %s not found", hash.Hex())
	}
	blockNumber, err := parseHexUint(raw.BlockNumber)
	if err != nil {
		return nil, err
	}
	return &recover.TransactionInfo{
		BlockNumber: blockNumber,
		Input:       common.FromHex(raw.Input),
	}, nil
}

// totalBlocksExecutedSelector is the 4-byte selector of the contract getter.
var totalBlocksExecutedSelector = crypto.Keccak256([]byte("totalBlocksExecuted()"))[:4]

// TotalBlocksExecuted calls the contract's totalBlocksExecuted getter.
func (c *Client) TotalBlocksExecuted(contract common.Address) (uint32, error) {
	callArgs := map[string]interface{}{
		"to":   contract.Hex(),
		"data": "0x" + common.Bytes2Hex(totalBlocksExecutedSelector),
	}
	var raw string
	if err := c.call("eth_call", &raw, callArgs, "latest"); err != nil {
		return 0, err
	}
	value, err := parseHexUint(raw)
	if err != nil {
		return 0, err
	}
	return uint32(value), nil
}
