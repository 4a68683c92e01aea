package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Errors surfaced by upstream collaborators. The deterministic core
// never talks to these services directly — the ingest edge validates
// against them before an event is injected.
var (
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrSlippageExceeded    = errors.New("output below slippage floor")
	ErrNoLiquidity         = errors.New("no liquidity for pair")
)

// BalanceSource reads participant wallet balances from the chain gateway.
type BalanceSource interface {
	BalanceOf(ctx context.Context, userID uuid.UUID, token string) (int64, error)
}

// SwapRequest is one quote-and-execute call against the router.
type SwapRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	TokenIn  string    `json:"token_in"`
	TokenOut string    `json:"token_out"`
	AmountIn int64     `json:"amount_in"`
	MinOut   int64     `json:"min_out"`
}

// SwapResult is the router's fill report.
type SwapResult struct {
	AmountOut int64  `json:"amount_out"`
	TxRef     string `json:"tx_ref"`
}

// SwapExecutor executes swaps through the external router.
type SwapExecutor interface {
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}

// RouterClient is the HTTP implementation of BalanceSource and SwapExecutor.
type RouterClient struct {
	baseURL string
	client  *http.Client
}

func NewRouterClient(baseURL string, timeout time.Duration) *RouterClient {
	return &RouterClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (rc *RouterClient) BalanceOf(ctx context.Context, userID uuid.UUID, token string) (int64, error) {
	url := fmt.Sprintf("%s/v1/balances/%s/%s", rc.baseURL, userID, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("balance lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("balance lookup: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("balance lookup: decode: %w", err)
	}

	return body.Balance, nil
}

func (rc *RouterClient) Swap(ctx context.Context, swapReq SwapRequest) (*SwapResult, error) {
	payload, err := json.Marshal(swapReq)
	if err != nil {
		return nil, err
	}

	url := rc.baseURL + "/v1/swap"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap execution: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to decode
	case http.StatusConflict:
		return nil, ErrSlippageExceeded
	case http.StatusUnprocessableEntity:
		return nil, ErrNoLiquidity
	default:
		return nil, fmt.Errorf("swap execution: unexpected status %d", resp.StatusCode)
	}

	var result SwapResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("swap execution: decode: %w", err)
	}

	return &result, nil
}
