package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/folio-api/internal/auth"
)

const (
	serverAddress = "http://localhost:8080"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean and median durations for the route
func (rs *routeStats) calculate() (min, max, mean, median time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	return min, max, mean, median
}

// client is a thin HTTP client for the portfolio API, collecting per-route
// latency statistics as it goes.
type client struct {
	httpClient *http.Client
	token      string
	stats      map[string]*routeStats
}

func newClient() *client {
	return &client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		stats:      make(map[string]*routeStats),
	}
}

func (c *client) stat(name string) *routeStats {
	rs, ok := c.stats[name]
	if !ok {
		rs = &routeStats{name: name}
		c.stats[name] = rs
	}
	return rs
}

// call performs one API request, recording latency and decoding the standard
// response envelope. A non-2xx status is returned as an error unless the
// caller expects it.
func (c *client) call(route, method, path string, body interface{}, expectStatus int) (json.RawMessage, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, serverAddress+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)

	rs := c.stat(route)
	rs.addDuration(elapsed)

	if err != nil {
		rs.failures++
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		rs.failures++
		return nil, err
	}

	if resp.StatusCode != expectStatus {
		rs.failures++
		return nil, fmt.Errorf("%s %s: expected status %d, got %d: %s",
			method, path, expectStatus, resp.StatusCode, string(raw))
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// main drives a full portfolio scenario against a running server: buys,
// a partial sell, an expected oversell rejection, a split, a rights issue,
// a dividend, and a final holdings fetch.
func main() {
	log.Info().Msg("starting portfolio simulation")

	c := newClient()

	// Authenticate
	data, err := c.call("auth_token", http.MethodPost, "/api/v1/auth/token", map[string]string{
		"api_key":    auth.DemoAPIKey,
		"api_secret": auth.DemoAPISecret,
	}, http.StatusCreated)
	if err != nil {
		log.Fatal().Err(err).Msg("token generation failed")
	}
	var token struct {
		Token string `json:"jwt_token"`
	}
	if err := json.Unmarshal(data, &token); err != nil {
		log.Fatal().Err(err).Msg("token response malformed")
	}
	c.token = token.Token
	log.Info().Msg("authenticated")

	// Seed trades
	trades := []map[string]interface{}{
		{"symbol": "THYAO", "side": "BUY", "quantity": 100, "price": 250.50, "commission_rate": 0.0004},
		{"symbol": "AKBNK", "side": "BUY", "quantity": 500, "price": 45.75, "commission_rate": 0.0004},
		{"symbol": "THYAO", "side": "SELL", "quantity": 50, "price": 265.00, "commission_rate": 0.0004},
	}
	for _, trade := range trades {
		if _, err := c.call("append_transaction", http.MethodPost,
			"/api/v1/portfolio/transactions", trade, http.StatusCreated); err != nil {
			log.Fatal().Err(err).Msg("trade append failed")
		}
		log.Info().
			Str("symbol", trade["symbol"].(string)).
			Str("side", trade["side"].(string)).
			Msg("trade appended")
	}

	// Oversell must be rejected at commit time
	_, err = c.call("append_transaction", http.MethodPost, "/api/v1/portfolio/transactions",
		map[string]interface{}{"symbol": "THYAO", "side": "SELL", "quantity": 10000, "price": 265.00},
		http.StatusConflict)
	if err != nil {
		log.Fatal().Err(err).Msg("oversell was not rejected as expected")
	}
	log.Info().Msg("oversell correctly rejected")

	// Corporate actions
	if _, err := c.call("apply_split", http.MethodPost, "/api/v1/portfolio/actions/split",
		map[string]interface{}{"symbol": "AKBNK", "ratio": 2}, http.StatusCreated); err != nil {
		log.Fatal().Err(err).Msg("split failed")
	}
	log.Info().Msg("split applied")

	if _, err := c.call("apply_rights_issue", http.MethodPost, "/api/v1/portfolio/actions/rights-issue",
		map[string]interface{}{"symbol": "THYAO", "rights_ratio": 0.25, "new_share_price": 5.00},
		http.StatusCreated); err != nil {
		log.Fatal().Err(err).Msg("rights issue failed")
	}
	log.Info().Msg("rights issue applied")

	// Dividend
	if _, err := c.call("record_dividend", http.MethodPost, "/api/v1/portfolio/dividends",
		map[string]interface{}{"symbol": "AKBNK", "total_amount": 1250.00},
		http.StatusCreated); err != nil {
		log.Fatal().Err(err).Msg("dividend recording failed")
	}
	log.Info().Msg("dividend recorded")

	// Settlement preview
	if _, err := c.call("settlement_preview", http.MethodPost, "/api/v1/portfolio/settlement/preview",
		map[string]interface{}{"side": "SELL", "quantity": 50, "price": 265.00, "average_cost": 250.50},
		http.StatusCreated); err != nil {
		log.Fatal().Err(err).Msg("settlement preview failed")
	}
	log.Info().Msg("settlement previewed")

	// Final holdings
	data, err = c.call("get_holdings", http.MethodGet, "/api/v1/portfolio/holdings", nil, http.StatusOK)
	if err != nil {
		log.Fatal().Err(err).Msg("holdings fetch failed")
	}
	var holdings struct {
		Holdings []struct {
			Symbol      string `json:"symbol"`
			Quantity    string `json:"quantity"`
			AverageCost string `json:"average_cost"`
		} `json:"holdings"`
	}
	if err := json.Unmarshal(data, &holdings); err != nil {
		log.Fatal().Err(err).Msg("holdings response malformed")
	}
	for _, h := range holdings.Holdings {
		log.Info().
			Str("symbol", h.Symbol).
			Str("quantity", h.Quantity).
			Str("average_cost", h.AverageCost).
			Msg("final holding")
	}

	printStats(c.stats)
}

// printStats renders the latency statistics collected per route
func printStats(stats map[string]*routeStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Info().Msg("--- route statistics ---")
	for _, name := range names {
		rs := stats[name]
		min, max, mean, median := rs.calculate()
		log.Info().
			Str("route", rs.name).
			Int("calls", rs.totalCalls).
			Int("failures", rs.failures).
			Dur("min", min).
			Dur("max", max).
			Dur("mean", mean).
			Dur("median", median).
			Msg("route stats")
	}
}
