package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type options struct {
	baseURL        string
	clientID       string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	serverStats    bool
	verbose        bool
}

var defaultUtterances = []string{
	"Reply in one short sentence: how can I slow my breathing?",
	"Reply in one short sentence: what helps with racing thoughts?",
	"Reply in one short sentence: how do I wind down before bed?",
	"Reply in one short sentence: what is a grounding exercise?",
}

type turnResult struct {
	firstToken time.Duration
	total      time.Duration
	deltas     int
	chars      int
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "havenperf: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "havenperf: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "haven base URL")
	flag.StringVar(&cfg.clientID, "client-id", "perf-replay", "client_id used for the synthetic conversation")
	flag.IntVar(&cfg.turns, "turns", 10, "number of chat turns to replay")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 30000, "timeout per turn in milliseconds")
	flag.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	flag.BoolVar(&cfg.serverStats, "server-stats", true, "fetch /v1/perf/latency after the replay")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	texts, err := parseTexts(textsRaw)
	if err != nil {
		return options{}, err
	}
	cfg.texts = texts
	return cfg, nil
}

func parseTexts(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultUtterances...), nil
	}
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("texts produced no non-empty utterances")
	}
	return out, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Minute)
	defer cancel()

	client := &http.Client{}
	results := make([]turnResult, 0, cfg.turns)

	if cfg.verbose {
		fmt.Printf("havenperf: client=%s turns=%d\n", cfg.clientID, cfg.turns)
	}

	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		res, err := runTurn(ctx, client, cfg, text)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		results = append(results, res)
		if cfg.verbose {
			fmt.Printf("havenperf: turn %d/%d first_token=%s total=%s deltas=%d chars=%d\n",
				i+1, cfg.turns, res.firstToken.Round(time.Millisecond), res.total.Round(time.Millisecond), res.deltas, res.chars)
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	printSummary(results)

	if cfg.serverStats {
		if err := printServerStats(ctx, client, cfg.baseURL); err != nil {
			fmt.Fprintf(os.Stderr, "havenperf: server stats unavailable: %v\n", err)
		}
	}
	return nil
}

type sseEvent struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
}

func runTurn(ctx context.Context, client *http.Client, cfg options, text string) (turnResult, error) {
	turnCtx, cancel := context.WithTimeout(ctx, cfg.turnTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"client_id": cfg.clientID,
		"messages":  []map[string]string{{"role": "user", "content": text}},
	})
	if err != nil {
		return turnResult{}, err
	}

	req, err := http.NewRequestWithContext(turnCtx, http.MethodPost, cfg.baseURL+"/v1/chat", bytes.NewReader(payload))
	if err != nil {
		return turnResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return turnResult{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return turnResult{}, fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var out turnResult
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		data, ok := parseSSEData(scanner.Text())
		if !ok {
			continue
		}
		if data == "[DONE]" {
			out.total = time.Since(start)
			return out, nil
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		if ev.Type == "error_event" {
			return turnResult{}, fmt.Errorf("error_event code=%s detail=%s", ev.Code, ev.Detail)
		}
		if ev.Content == "" {
			continue
		}
		if out.deltas == 0 {
			out.firstToken = time.Since(start)
		}
		out.deltas++
		out.chars += len(ev.Content)
	}
	if err := scanner.Err(); err != nil {
		return turnResult{}, fmt.Errorf("stream read: %w", err)
	}
	return turnResult{}, fmt.Errorf("stream ended without done sentinel")
}

// parseSSEData extracts the payload of one SSE data line.
func parseSSEData(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

func printSummary(results []turnResult) {
	if len(results) == 0 {
		return
	}
	firsts := make([]float64, 0, len(results))
	totals := make([]float64, 0, len(results))
	for _, r := range results {
		firsts = append(firsts, float64(r.firstToken.Microseconds())/1000.0)
		totals = append(totals, float64(r.total.Microseconds())/1000.0)
	}
	sort.Float64s(firsts)
	sort.Float64s(totals)

	fmt.Printf("havenperf: first_token_ms p50=%.1f p95=%.1f max=%.1f\n",
		quantile(firsts, 0.50), quantile(firsts, 0.95), firsts[len(firsts)-1])
	fmt.Printf("havenperf: turn_total_ms p50=%.1f p95=%.1f max=%.1f\n",
		quantile(totals, 0.50), quantile(totals, 0.95), totals[len(totals)-1])
}

func printServerStats(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/perf/latency", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", res.StatusCode)
	}

	var snap struct {
		Stages []struct {
			Stage   string  `json:"stage"`
			Samples int     `json:"samples"`
			P50MS   float64 `json:"p50_ms"`
			P95MS   float64 `json:"p95_ms"`
		} `json:"stages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return err
	}
	for _, s := range snap.Stages {
		fmt.Printf("havenperf: server %s samples=%d p50=%.1fms p95=%.1fms\n", s.Stage, s.Samples, s.P50MS, s.P95MS)
	}
	return nil
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
