// cli drives a running order-service through order lifecycles, for smoke
// checks and quick load probes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	scenario := flag.String("run", "lifecycle", "scenario: lifecycle|cancel|bench")
	flag.Parse()

	baseURL := getenv("ORDER_BASE_URL", "http://localhost:8080")
	switch *scenario {
	case "lifecycle":
		runLifecycle(baseURL, []string{"VALIDATED", "PAID", "DELIVERING", "COMPLETED"})
	case "cancel":
		runLifecycle(baseURL, []string{"VALIDATED", "CANCELLED"})
	case "bench":
		fmt.Println(runBenchmark(baseURL))
	default:
		fmt.Fprintf(os.Stderr, "unknown scenario %q\n", *scenario)
		os.Exit(2)
	}
}

type orderResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

func runLifecycle(baseURL string, statuses []string) {
	order, err := createOrder(baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created order %s (version %d)\n", order.ID, order.Version)

	for _, status := range statuses {
		updated, err := changeStatus(baseURL, order.ID, status)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", status, err)
			os.Exit(1)
		}
		fmt.Printf("order %s -> %s (version %d)\n", updated.ID, updated.Status, updated.Version)
	}
}

func createOrder(baseURL string) (orderResponse, error) {
	payload := map[string]any{
		"user_id": uuid.NewString(),
		"items": []map[string]any{
			{"product_id": uuid.NewString(), "product_name": "Sample product", "price": 12.50, "currency": "USD", "quantity": 2},
		},
	}
	return post(baseURL+"/orders", payload, uuid.NewString())
}

func changeStatus(baseURL, orderID, status string) (orderResponse, error) {
	return post(baseURL+"/orders/"+orderID+"/status", map[string]any{"status": status}, "")
}

func post(url string, payload any, idemKey string) (orderResponse, error) {
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return orderResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return orderResponse{}, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return orderResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return orderResponse{}, err
	}
	return out, nil
}

func runBenchmark(baseURL string) string {
	duration := 5 * time.Second
	vus := 5
	var mu sync.Mutex
	var total time.Duration
	var count int
	var failures int
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < vus; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
					start := time.Now()
					_, err := createOrder(baseURL)
					mu.Lock()
					if err != nil {
						failures++
					} else {
						count++
						total += time.Since(start)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	avg := time.Duration(0)
	if count > 0 {
		avg = total / time.Duration(count)
	}
	throughput := float64(count) / duration.Seconds()
	return fmt.Sprintf("count=%d failures=%d avg=%s throughput=%.2f orders/s", count, failures, avg, throughput)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
