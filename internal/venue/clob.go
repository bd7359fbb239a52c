// Package venue provides order execution against the Polymarket CLOB
//
// clob.go - CLOB trading client. Handles order placement, cancellation,
// balance queries and trade history, with L2 HMAC authentication.
// In dry-run mode nothing reaches the network; placements return
// sentinel IDs and cancellations succeed trivially.
//
// Reference: https://docs.polymarket.com/
// Python client: https://github.com/Polymarket/py-clob-client
package venue

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/config"
)

// usdcScale converts raw balance figures (USDC has 6 decimals)
var usdcScale = decimal.NewFromInt(1_000_000)

// Client trades on the Polymarket CLOB.
type Client struct {
	baseURL       string
	dryRun        bool
	apiKey        string
	apiSecret     string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	signerAddr    common.Address
	funderAddr    common.Address
	signatureType int
	httpClient    *http.Client
}

// NewClient creates a CLOB client. In live mode the private key is
// parsed up front so a bad key fails at startup, not at first order.
func NewClient(cfg *config.Config) (*Client, error) {
	c := &Client{
		baseURL:       cfg.CLOBAPIURL,
		dryRun:        cfg.DryRun,
		apiKey:        cfg.CLOBApiKey,
		apiSecret:     cfg.CLOBApiSecret,
		passphrase:    cfg.CLOBPassphrase,
		signerAddr:    common.HexToAddress(cfg.SignerAddress),
		funderAddr:    common.HexToAddress(cfg.FunderAddress),
		signatureType: cfg.SignatureType,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}

	if !cfg.DryRun {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = key
	}

	return c, nil
}

// DryRun reports whether the client is simulating.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// WalletAddress returns the funder address when set, else the signer.
func (c *Client) WalletAddress() string {
	if c.funderAddr != (common.Address{}) {
		return c.funderAddr.Hex()
	}
	return c.signerAddr.Hex()
}

// dryRunBalance is the simulated bankroll used when no venue account
// exists to query.
var dryRunBalance = decimal.NewFromInt(1000)

// AvailableBalance returns the USDC collateral balance.
func (c *Client) AvailableBalance() (decimal.Decimal, error) {
	if c.dryRun {
		return dryRunBalance, nil
	}

	endpoint := fmt.Sprintf("/balance-allowance?asset_type=COLLATERAL&signature_type=%d", c.signatureType)
	body, err := c.get(endpoint)
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}

	raw, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %q is not numeric", result.Balance)
	}
	return raw.Div(usdcScale), nil
}

// TokenBalance returns the share balance for one outcome token.
func (c *Client) TokenBalance(tokenID string) (decimal.Decimal, error) {
	if c.dryRun {
		return decimal.Zero, nil
	}

	endpoint := fmt.Sprintf("/balance-allowance?asset_type=CONDITIONAL&token_id=%s&signature_type=%d",
		tokenID, c.signatureType)
	body, err := c.get(endpoint)
	if err != nil {
		return decimal.Zero, err
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("parse balance: %w", err)
	}

	raw, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance %q is not numeric", result.Balance)
	}
	return raw.Div(usdcScale), nil
}

// PlaceLimitOrder places a GTC limit order and returns its ID. The
// order rests on the book; stale orders are cancelled by the caller's
// TTL sweep, not by the venue.
func (c *Client) PlaceLimitOrder(tokenID string, side Side, price, size decimal.Decimal) (string, error) {
	if c.dryRun {
		orderID := NewDryRunOrderID()
		log.Info().
			Str("order_id", orderID).
			Str("token", shortID(tokenID)).
			Str("side", string(side)).
			Str("price", price.String()).
			Str("size", size.String()).
			Msg("🧪 [DRY RUN] Order simulated")
		return orderID, nil
	}

	signer := newOrderSigner(c.privateKey, c.signerAddr, c.funderAddr, c.signatureType)
	signed, err := signer.signedOrderFor(tokenID, side, price, size)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}

	payload, err := json.Marshal(signed.apiPayload(c.apiKey, "GTC"))
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/order", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.signL2Request(req, "POST", "/order", payload)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result struct {
		OrderID   string `json:"orderID"`
		Status    string `json:"status"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse order response: %w, body: %s", err, string(respBody))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("order rejected: %s - %s", result.ErrorCode, result.Message)
	}
	if result.OrderID == "" {
		return "", fmt.Errorf("no order ID returned: %s", result.Message)
	}

	log.Info().
		Str("order_id", result.OrderID).
		Str("token", shortID(tokenID)).
		Str("side", string(side)).
		Str("price", price.String()).
		Str("size", size.String()).
		Msg("📋 Order placed (GTC)")

	return result.OrderID, nil
}

// wireOrder is an order record as the data API encodes it.
type wireOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Status       string `json:"status"`
}

func (w wireOrder) toRemote() RemoteOrder {
	price, _ := decimal.NewFromString(w.Price)
	size, _ := decimal.NewFromString(w.OriginalSize)
	matched, _ := decimal.NewFromString(w.SizeMatched)
	return RemoteOrder{
		ID:           w.ID,
		TokenID:      w.AssetID,
		Side:         Side(strings.ToUpper(w.Side)),
		Price:        price,
		OriginalSize: size,
		SizeMatched:  matched,
		Status:       strings.ToUpper(w.Status),
	}
}

// OpenOrders returns all currently open orders on the account.
func (c *Client) OpenOrders() ([]RemoteOrder, error) {
	if c.dryRun {
		return nil, nil
	}

	body, err := c.get("/data/orders")
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []wireOrder `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse orders: %w", err)
	}

	orders := make([]RemoteOrder, 0, len(result.Data))
	for _, w := range result.Data {
		orders = append(orders, w.toRemote())
	}
	return orders, nil
}

// Order fetches the current state of one order.
func (c *Client) Order(orderID string) (RemoteOrder, error) {
	if IsDryRunOrderID(orderID) {
		return RemoteOrder{ID: orderID, Status: "LIVE"}, nil
	}

	body, err := c.get("/data/order/" + orderID)
	if err != nil {
		return RemoteOrder{}, err
	}

	var w wireOrder
	if err := json.Unmarshal(body, &w); err != nil {
		return RemoteOrder{}, fmt.Errorf("parse order: %w", err)
	}
	return w.toRemote(), nil
}

// Trades returns the account's trade history, newest first.
func (c *Client) Trades() ([]RemoteTrade, error) {
	if c.dryRun {
		return nil, nil
	}

	body, err := c.get("/data/trades")
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			ID          string      `json:"id"`
			AssetID     string      `json:"asset_id"`
			Side        string      `json:"side"`
			Size        string      `json:"size"`
			Price       string      `json:"price"`
			Status      string      `json:"status"`
			MatchTime   string      `json:"match_time"`
			MakerOrders []MakerFill `json:"maker_orders"`
		} `json:"data"`
		NextCursor string `json:"next_cursor"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse trades: %w", err)
	}

	trades := make([]RemoteTrade, 0, len(result.Data))
	for _, t := range result.Data {
		size, _ := decimal.NewFromString(t.Size)
		price, _ := decimal.NewFromString(t.Price)
		trades = append(trades, RemoteTrade{
			ID:          t.ID,
			AssetID:     t.AssetID,
			Side:        Side(strings.ToUpper(t.Side)),
			Size:        size,
			Price:       price,
			Status:      strings.ToUpper(t.Status),
			MatchTime:   t.MatchTime,
			MakerOrders: t.MakerOrders,
		})
	}
	return trades, nil
}

// CancelOrder cancels one open order.
func (c *Client) CancelOrder(orderID string) error {
	if IsDryRunOrderID(orderID) {
		log.Info().Str("order_id", orderID).Msg("🧪 [DRY RUN] Cancel simulated")
		return nil
	}

	body := []byte(fmt.Sprintf(`{"orderID":"%s"}`, orderID))
	req, err := http.NewRequest("DELETE", c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.signL2Request(req, "DELETE", "/order", body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("cancel %s: %w", orderID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel failed: %s", string(respBody))
	}
	return nil
}

// CancelAll cancels every open order on the account. Used on shutdown
// so no resting orders outlive the process.
func (c *Client) CancelAll() error {
	if c.dryRun {
		return nil
	}

	req, err := http.NewRequest("DELETE", c.baseURL+"/cancel-all", nil)
	if err != nil {
		return err
	}
	c.signL2Request(req, "DELETE", "/cancel-all", nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel-all failed: %s", string(respBody))
	}

	log.Info().Msg("🛑 All open orders cancelled")
	return nil
}

// TestConnection verifies API connectivity.
func (c *Client) TestConnection() error {
	if c.dryRun {
		return nil
	}

	req, err := http.NewRequest("GET", c.baseURL+"/time", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	log.Info().Msg("✅ CLOB API connection verified")
	return nil
}

// get performs an authenticated GET and returns the response body.
func (c *Client) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest("GET", c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.signL2Request(req, "GET", endpoint, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// signL2Request adds Level 2 authentication headers.
// Based on: https://github.com/Polymarket/py-clob-client/blob/main/py_clob_client/signing/hmac.py
func (c *Client) signL2Request(req *http.Request, method, path string, body []byte) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	// Message to sign: timestamp + method + requestPath + body, exactly
	// as py-clob-client builds it.
	message := timestamp + method + path
	if len(body) > 0 {
		message += string(body)
	}

	// py-clob-client uses urlsafe base64 for both decode and encode.
	secretBytes, err := base64.URLEncoding.DecodeString(c.apiSecret)
	if err != nil {
		padded := c.apiSecret
		if len(padded)%4 != 0 {
			padded += strings.Repeat("=", 4-len(padded)%4)
		}
		secretBytes, err = base64.URLEncoding.DecodeString(padded)
		if err != nil {
			secretBytes, _ = base64.StdEncoding.DecodeString(c.apiSecret)
		}
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	// Polymarket header names use underscores, not hyphens.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)

	// POLY_ADDRESS is the signer, not the funder.
	if c.signerAddr != (common.Address{}) {
		req.Header.Set("POLY_ADDRESS", c.signerAddr.Hex())
	}
}

func shortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}
