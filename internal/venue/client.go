// Package venue is the authenticated REST client for the prediction-market
// venue: quotes, order book, order post/cancel, and open orders. The request
// shape and HMAC authentication scheme are grounded on the teacher's
// exec/client.go (hmacSign/addHeaders), adapted to the header names and
// encoding this project's venue actually expects (dash-separated headers,
// standard — not URL-safe — base64, confirmed against the upstream source
// this spec was distilled from).
package venue

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/stuartoffabean/polymarket-bot/internal/domain"
)

// Client talks to the prediction-market venue over HTTP.
type Client struct {
	baseURL    string
	address    string
	apiKey     string
	secret     string
	passphrase string
	httpClient *http.Client
}

// Config carries the credentials and endpoint a Client needs.
type Config struct {
	BaseURL         string
	AccountIdentity string // raw configured identity; normalized to a checksummed address
	APIKey          string
	Secret          string // base64
	Passphrase      string
}

// New builds a Client. The account identity is normalized through
// go-ethereum's address checksum so the POLY-ADDRESS header always carries a
// canonical form even though the venue's signature verification itself is
// opaque to this client.
func New(cfg Config) *Client {
	address := cfg.AccountIdentity
	if common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		address:    address,
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{MaxIdleConnsPerHost: 4},
		},
	}
}

// OrderResult is the venue's response to post_order.
type OrderResult struct {
	Success      bool
	RemoteID     string
	ErrorMessage string
}

// OpenOrder is one entry from get_open_orders.
type OpenOrder struct {
	ID      string
	TokenID string
	Price   float64
	Size    float64
	Side    domain.Side
}

// GetPrice returns the last traded price for a token. Unauthenticated.
func (c *Client) GetPrice(tokenID string) (float64, error) {
	body, err := c.get(fmt.Sprintf("/price?token_id=%s", tokenID), false)
	if err != nil {
		return 0, err
	}
	var out struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}
	return out.Price, nil
}

// GetMidpoint returns the book midpoint for a token. Unauthenticated.
func (c *Client) GetMidpoint(tokenID string) (float64, error) {
	body, err := c.get(fmt.Sprintf("/midpoint?token_id=%s", tokenID), false)
	if err != nil {
		return 0, err
	}
	var out struct {
		Mid float64 `json:"mid"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode midpoint response: %w", err)
	}
	return out.Mid, nil
}

// GetOrderBook returns the full order book for a token. Unauthenticated.
func (c *Client) GetOrderBook(tokenID string) (domain.OrderBook, error) {
	body, err := c.get(fmt.Sprintf("/book?token_id=%s", tokenID), false)
	if err != nil {
		return domain.OrderBook{}, err
	}
	var wire struct {
		Bids []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"asks"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return domain.OrderBook{}, fmt.Errorf("decode book response: %w", err)
	}

	book := domain.OrderBook{TokenID: tokenID}
	for _, lvl := range wire.Bids {
		book.Bids = append(book.Bids, parseLevel(lvl.Price, lvl.Size))
	}
	for _, lvl := range wire.Asks {
		book.Asks = append(book.Asks, parseLevel(lvl.Price, lvl.Size))
	}
	return book, nil
}

func parseLevel(priceStr, sizeStr string) domain.BookLevel {
	price, _ := strconv.ParseFloat(priceStr, 64)
	size, _ := strconv.ParseFloat(sizeStr, 64)
	return domain.BookLevel{Price: price, Size: size}
}

// PostOrder submits an order. Authenticated.
func (c *Client) PostOrder(tokenID string, price, size float64, side domain.Side, orderType domain.OrderType) (OrderResult, error) {
	payload := map[string]interface{}{
		"tokenID":   tokenID,
		"price":     price,
		"size":      size,
		"side":      string(side),
		"orderType": string(orderType),
	}
	body, err := c.post("/order", payload)
	if err != nil {
		return OrderResult{}, err
	}
	var out struct {
		Success      bool   `json:"success"`
		OrderID      string `json:"orderID"`
		ErrorMessage string `json:"errorMsg"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	return OrderResult{Success: out.Success, RemoteID: out.OrderID, ErrorMessage: out.ErrorMessage}, nil
}

// CancelOrder cancels a single order. Authenticated.
func (c *Client) CancelOrder(orderID string) (bool, error) {
	body, err := c.delete("/order", map[string]interface{}{"orderID": orderID})
	if err != nil {
		return false, err
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("decode cancel response: %w", err)
	}
	return out.Success, nil
}

// CancelAll cancels every open order at the venue. Authenticated.
func (c *Client) CancelAll() (bool, error) {
	body, err := c.delete("/cancel-all", nil)
	if err != nil {
		return false, err
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("decode cancel-all response: %w", err)
	}
	return out.Success, nil
}

// GetOpenOrders lists resting orders. Authenticated.
func (c *Client) GetOpenOrders() ([]OpenOrder, error) {
	body, err := c.get("/orders", true)
	if err != nil {
		return nil, err
	}
	var wire []struct {
		ID      string `json:"id"`
		TokenID string `json:"tokenID"`
		Price   string `json:"price"`
		Size    string `json:"size"`
		Side    string `json:"side"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode open orders response: %w", err)
	}
	out := make([]OpenOrder, 0, len(wire))
	for _, o := range wire {
		price, _ := strconv.ParseFloat(o.Price, 64)
		size, _ := strconv.ParseFloat(o.Size, 64)
		out = append(out, OpenOrder{ID: o.ID, TokenID: o.TokenID, Price: price, Size: size, Side: domain.Side(o.Side)})
	}
	return out, nil
}

func (c *Client) get(path string, authenticated bool) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if authenticated {
		c.addAuthHeaders(req, nil)
	}
	return c.do(req)
}

func (c *Client) post(path string, payload interface{}) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuthHeaders(req, jsonBody)
	return c.do(req)
}

func (c *Client) delete(path string, payload interface{}) ([]byte, error) {
	var jsonBody []byte
	if payload != nil {
		var err error
		jsonBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	if len(jsonBody) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeaders(req, jsonBody)
	return c.do(req)
}

// addAuthHeaders signs timestamp + method + path + body with HMAC-SHA256
// and attaches the venue's dash-separated auth headers.
func (c *Client) addAuthHeaders(req *http.Request, body []byte) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req.Header.Set("POLY-ADDRESS", c.address)
	req.Header.Set("POLY-API-KEY", c.apiKey)
	req.Header.Set("POLY-TIMESTAMP", timestamp)
	req.Header.Set("POLY-PASSPHRASE", c.passphrase)

	message := timestamp + req.Method + req.URL.Path + string(body)
	req.Header.Set("POLY-SIGNATURE", c.hmacSign(message))
}

func (c *Client) hmacSign(message string) string {
	key, err := base64.StdEncoding.DecodeString(c.secret)
	if err != nil {
		key = []byte(c.secret)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("venue request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read venue response: %w", err)
	}
	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Str("path", req.URL.Path).Msg("venue returned non-2xx")
		return nil, fmt.Errorf("venue HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
