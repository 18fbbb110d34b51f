package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Drives the full flow against a running instance: charge points, join
// the line, wait for promotion, grab a seat, pay. Meant for eyeballing
// queue drain and contention behavior, not for benchmarks.

var (
	baseURL    = flag.String("base-url", "http://localhost:8080", "Service base URL")
	scheduleID = flag.String("schedule", "", "Schedule ID with seeded seats (required)")
	numUsers   = flag.Int("users", 300, "Number of simulated users")
	joinRate   = flag.Duration("join-rate", 10*time.Millisecond, "Delay between user joins")
	charge     = flag.Int64("charge", 150000, "Points charged to each user before joining")
	pollEvery  = flag.Duration("poll", 2*time.Second, "Token status poll interval")
	timeout    = flag.Duration("timeout", 10*time.Minute, "Give up on a user after this long")
)

var (
	confirmed int64
	failed    int64
	gaveUp    int64
)

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type tokenStatus struct {
	TokenID    string `json:"token_id"`
	Status     string `json:"status"`
	Position   int64  `json:"position"`
	EntryToken string `json:"entry_token"`
}

type seat struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type reservation struct {
	ID string `json:"id"`
}

func main() {
	flag.Parse()

	if *scheduleID == "" {
		fmt.Println("Error: --schedule flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cli := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for i := 0; i < *numUsers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runUser(cli)
		}()
		time.Sleep(*joinRate)
	}
	wg.Wait()

	fmt.Printf("done: confirmed=%d failed=%d gave_up=%d\n",
		atomic.LoadInt64(&confirmed), atomic.LoadInt64(&failed), atomic.LoadInt64(&gaveUp))
}

func runUser(cli *http.Client) {
	userID := uuid.New().String()

	if err := post(cli, "/api/v1/balance/charge", map[string]any{
		"user_id": userID, "amount": *charge, "description": "simulation top-up",
	}, nil, nil); err != nil {
		fmt.Printf("charge %s: %v\n", userID, err)
		atomic.AddInt64(&failed, 1)
		return
	}

	var ts tokenStatus
	if err := post(cli, "/api/v1/tokens", map[string]any{"user_id": userID}, nil, &ts); err != nil {
		fmt.Printf("join %s: %v\n", userID, err)
		atomic.AddInt64(&failed, 1)
		return
	}

	deadline := time.Now().Add(*timeout)
	for ts.Status != "active" {
		if time.Now().After(deadline) {
			atomic.AddInt64(&gaveUp, 1)
			return
		}
		time.Sleep(*pollEvery)

		if err := get(cli, "/api/v1/tokens/"+ts.TokenID, &ts); err != nil {
			fmt.Printf("poll %s: %v\n", userID, err)
			atomic.AddInt64(&failed, 1)
			return
		}
	}

	headers := map[string]string{
		"X-Admission-Token": ts.TokenID,
		"X-Entry-Token":     ts.EntryToken,
	}

	// A few attempts because another active user may snipe the seat.
	for attempt := 0; attempt < 5; attempt++ {
		var seats []seat
		if err := get(cli, "/api/v1/schedules/"+*scheduleID+"/seats", &seats); err != nil {
			fmt.Printf("seats %s: %v\n", userID, err)
			atomic.AddInt64(&failed, 1)
			return
		}

		open := seats[:0]
		for _, s := range seats {
			if s.Status == "available" {
				open = append(open, s)
			}
		}
		if len(open) == 0 {
			atomic.AddInt64(&gaveUp, 1)
			return
		}

		target := open[rand.Intn(len(open))]

		var resv reservation
		if err := post(cli, "/api/v1/reservations", map[string]any{
			"user_id": userID, "seat_id": target.ID,
		}, headers, &resv); err != nil {
			continue
		}

		if err := post(cli, "/api/v1/payments", map[string]any{
			"user_id": userID, "reservation_id": resv.ID,
		}, headers, nil); err != nil {
			fmt.Printf("pay %s: %v\n", userID, err)
			atomic.AddInt64(&failed, 1)
			return
		}

		atomic.AddInt64(&confirmed, 1)
		return
	}

	atomic.AddInt64(&gaveUp, 1)
}

func post(cli *http.Client, path string, body map[string]any, headers map[string]string, out any) error {
	raw, _ := json.Marshal(body)

	req, err := http.NewRequest(http.MethodPost, *baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return do(cli, req, out)
}

func get(cli *http.Client, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, *baseURL+path, nil)
	if err != nil {
		return err
	}

	return do(cli, req, out)
}

func do(cli *http.Client, req *http.Request, out any) error {
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, env.Message)
	}

	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}

	return nil
}
