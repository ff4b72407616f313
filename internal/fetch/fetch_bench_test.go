package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// Benchmark the fetch.Client under different concurrency and pacing settings.
func BenchmarkClient_FetchConcurrencyAndPacing(b *testing.B) {
	mux := http.NewServeMux()
	mux.HandleFunc("/icon.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M0 0h24v24H0z"/></svg>`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	runScenario := func(name string, maxConc int, limiter *rate.Limiter) {
		b.Run(name, func(b *testing.B) {
			cli := &Client{
				HTTPClient:        ts.Client(),
				UserAgent:         "bench/1",
				MaxAttempts:       1,
				PerRequestTimeout: 2 * time.Second,
				MaxConcurrent:     maxConc,
				Limiter:           limiter,
			}
			url := ts.URL + "/icon.svg"
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					_, _, err := cli.GetAs(ctx, url, nil)
					cancel()
					if err != nil {
						b.Fatalf("fetch failed: %v", err)
					}
				}
			})
		})
	}

	runScenario("conc=1", 1, nil)
	runScenario("conc=8", 8, nil)
	runScenario("conc=8,rate=inf", 8, rate.NewLimiter(rate.Inf, 1))
}
