// Package venue is the outbound REST client for the external venue: price
// history for backfill and the closed-market listing for resolution.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oddsync/odds-engine/pkg/types"
	"go.uber.org/zap"
)

// Client is an HTTP client for the venue's REST APIs.
type Client struct {
	historyURL string
	gammaURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a venue client.
func NewClient(historyURL, gammaURL string, logger *zap.Logger) *Client {
	return &Client{
		historyURL: historyURL,
		gammaURL:   gammaURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// conditionBatchSize is the maximum number of condition ids per
// closed-market listing request.
const conditionBatchSize = 20

// FetchPriceHistory fetches a token's price history at the given fidelity
// (in minutes) over [start, end].
func (c *Client) FetchPriceHistory(ctx context.Context, tokenID string, fidelityMins int, start, end time.Time) ([]types.HistoryPoint, error) {
	params := url.Values{}
	params.Add("market", tokenID)
	params.Add("fidelity", strconv.Itoa(fidelityMins))
	params.Add("startTs", strconv.FormatInt(start.Unix(), 10))
	params.Add("endTs", strconv.FormatInt(end.Unix(), 10))

	requestURL := fmt.Sprintf("%s/prices-history?%s", c.historyURL, params.Encode())

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch price history: %w", err)
	}

	var resp types.HistoryResponse
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("unmarshal history response: %w", err)
	}

	c.logger.Debug("fetched-price-history",
		zap.String("token-id", tokenID),
		zap.Int("points", len(resp.History)))

	return resp.History, nil
}

// FetchClosedMarkets fetches the closed-market listing for the given
// external market (condition) ids, batching the request as needed.
func (c *Client) FetchClosedMarkets(ctx context.Context, conditionIDs []string) ([]types.ClosedMarket, error) {
	var all []types.ClosedMarket

	for start := 0; start < len(conditionIDs); start += conditionBatchSize {
		end := start + conditionBatchSize
		if end > len(conditionIDs) {
			end = len(conditionIDs)
		}

		batch, err := c.fetchClosedBatch(ctx, conditionIDs[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}

	return all, nil
}

func (c *Client) fetchClosedBatch(ctx context.Context, conditionIDs []string) ([]types.ClosedMarket, error) {
	params := url.Values{}
	params.Add("closed", "true")
	for _, id := range conditionIDs {
		params.Add("condition_ids", id)
	}

	requestURL := fmt.Sprintf("%s/markets?%s", c.gammaURL, params.Encode())

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch closed markets: %w", err)
	}

	// The listing returns a direct array, not a wrapped object.
	var markets []types.ClosedMarket
	err = json.Unmarshal(body, &markets)
	if err != nil {
		return nil, fmt.Errorf("unmarshal closed markets: %w", err)
	}

	for i := range markets {
		err = decodeStringLists(&markets[i])
		if err != nil {
			c.logger.Warn("closed-market-outcome-decode-failed",
				zap.String("condition-id", markets[i].ConditionID),
				zap.Error(err))
		}
	}

	c.logger.Debug("fetched-closed-markets", zap.Int("count", len(markets)))

	return markets, nil
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "odds-engine/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

// decodeStringLists parses the venue's JSON-in-a-string outcome and price
// lists into proper slices.
func decodeStringLists(m *types.ClosedMarket) error {
	if m.RawOutcomes != "" {
		err := json.Unmarshal([]byte(m.RawOutcomes), &m.Outcomes)
		if err != nil {
			return fmt.Errorf("decode outcomes: %w", err)
		}
	}
	if m.RawOutcomePrices != "" {
		err := json.Unmarshal([]byte(m.RawOutcomePrices), &m.OutcomePrices)
		if err != nil {
			return fmt.Errorf("decode outcome prices: %w", err)
		}
	}
	return nil
}
