package primaryledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianfin/ledgermirror/pkg/backoff"
	"github.com/meridianfin/ledgermirror/pkg/config"
	pkgerrors "github.com/meridianfin/ledgermirror/pkg/errors"
	"github.com/meridianfin/ledgermirror/pkg/logger"
)

// Transfer is the primary ledger's unit of work: a single debit/credit pair
// identified by a client-chosen transfer id.
type Transfer struct {
	TransferID      string          `json:"transfer_id"`
	DebitAccountID  uuid.UUID       `json:"debit_account_id"`
	CreditAccountID uuid.UUID       `json:"credit_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Timestamp       time.Time       `json:"timestamp"`
	PartitionID     int             `json:"partition_id"`
	Sequence        int64           `json:"sequence"`
}

// AccountBalance is the primary ledger's view of a single account.
type AccountBalance struct {
	AccountID   uuid.UUID       `json:"account_id"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
}

// Client talks to the primary ledger's HTTP surface.
type Client interface {
	SubmitTransfer(ctx context.Context, transfer Transfer) error
	GetAccountBalance(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error)
}

type client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logg       *logger.Logger
}

// NewClient builds a primary ledger client from config.
func NewClient(cfg config.PrimaryLedgerConfig, logg *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "primary ledger base url required")
	}
	return &client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		maxDelay:   cfg.RetryMaxDelay,
		logg:       logg,
	}, nil
}

// SubmitTransfer posts a transfer to the primary ledger. The transfer id makes
// the call idempotent on the remote side: a 409 means the transfer already
// exists and is treated as success.
func (c *client) SubmitTransfer(ctx context.Context, transfer Transfer) error {
	body, err := json.Marshal(transfer)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transfer")
	}

	return c.withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build transfer request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit transfer")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusConflict:
			// Already accepted on a previous attempt.
			return nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		default:
			return c.responseError(resp, "submit transfer")
		}
	})
}

// GetAccountBalance fetches the primary ledger's totals for one account.
func (c *client) GetAccountBalance(ctx context.Context, accountID uuid.UUID) (*AccountBalance, error) {
	var balance AccountBalance
	err := c.withRetry(ctx, func() error {
		url := fmt.Sprintf("%s/v1/accounts/%s/balance", c.baseURL, accountID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build balance request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch account balance")
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found in primary ledger")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return c.responseError(resp, "fetch account balance")
		}
		if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode balance response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// withRetry runs fn with bounded exponential backoff and jitter. Only
// retryable failures (network errors, 5xx) trigger another attempt.
func (c *client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoff.Delay(c.baseDelay, c.maxDelay, attempt)
			select {
			case <-ctx.Done():
				return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "primary ledger request cancelled")
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !pkgerrors.Retryable(lastErr) {
			return lastErr
		}
		if c.logg != nil {
			logCtx := c.logg.WithField(ctx, "attempt", attempt+1)
			c.logg.Warn(logCtx, "primary ledger request failed, retrying: "+lastErr.Error())
		}
	}
	return lastErr
}

func (c *client) responseError(resp *http.Response, action string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s: primary ledger returned %d: %s", action, resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 500 {
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
