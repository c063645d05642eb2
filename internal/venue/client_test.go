package venue

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFetchPriceHistory(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices-history" {
			t.Errorf("path = %s, want /prices-history", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("market"); got != "tok-1" {
			t.Errorf("market = %s, want tok-1", got)
		}
		if got := q.Get("fidelity"); got != "60" {
			t.Errorf("fidelity = %s, want 60", got)
		}
		if got := q.Get("startTs"); got != fmt.Sprint(start.Unix()) {
			t.Errorf("startTs = %s, want %d", got, start.Unix())
		}
		if got := q.Get("endTs"); got != fmt.Sprint(end.Unix()) {
			t.Errorf("endTs = %s, want %d", got, end.Unix())
		}
		fmt.Fprintf(w, `{"history":[{"t":%d,"p":0.42},{"t":%d,"p":0.45}]}`,
			start.Unix(), start.Add(time.Hour).Unix())
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, zap.NewNop())
	points, err := client.FetchPriceHistory(context.Background(), "tok-1", 60, start, end)
	if err != nil {
		t.Fatalf("FetchPriceHistory() error = %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if points[0].Price != 0.42 {
		t.Errorf("first price = %v, want 0.42", points[0].Price)
	}
	if got := points[0].Time(); !got.Equal(start) {
		t.Errorf("first time = %v, want %v", got, start)
	}
}

func TestFetchPriceHistory_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, zap.NewNop())
	_, err := client.FetchPriceHistory(context.Background(), "tok-1", 60,
		time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("FetchPriceHistory() expected error on 502")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want status code mentioned", err)
	}
}

func TestFetchClosedMarkets_DecodesStringLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %s, want /markets", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("closed"); got != "true" {
			t.Errorf("closed = %s, want true", got)
		}
		if got := q["condition_ids"]; len(got) != 1 || got[0] != "cond-1" {
			t.Errorf("condition_ids = %v, want [cond-1]", got)
		}
		fmt.Fprint(w, `[{
			"conditionId": "cond-1",
			"question": "Will it rain tomorrow?",
			"closed": true,
			"outcomes": "[\"Yes\", \"No\"]",
			"outcomePrices": "[\"0.97\", \"0.03\"]"
		}]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, zap.NewNop())
	markets, err := client.FetchClosedMarkets(context.Background(), []string{"cond-1"})
	if err != nil {
		t.Fatalf("FetchClosedMarkets() error = %v", err)
	}

	if len(markets) != 1 {
		t.Fatalf("markets = %d, want 1", len(markets))
	}
	m := markets[0]
	if !m.Closed {
		t.Error("market not marked closed")
	}
	wantOutcomes := []string{"Yes", "No"}
	if len(m.Outcomes) != 2 || m.Outcomes[0] != wantOutcomes[0] || m.Outcomes[1] != wantOutcomes[1] {
		t.Errorf("outcomes = %v, want %v", m.Outcomes, wantOutcomes)
	}
	if len(m.OutcomePrices) != 2 || m.OutcomePrices[0] != "0.97" {
		t.Errorf("outcome prices = %v, want [0.97 0.03]", m.OutcomePrices)
	}
}

func TestFetchClosedMarkets_BatchesLargeRequests(t *testing.T) {
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batches = append(batches, r.URL.Query()["condition_ids"])
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = fmt.Sprintf("cond-%d", i)
	}

	client := NewClient(srv.URL, srv.URL, zap.NewNop())
	_, err := client.FetchClosedMarkets(context.Background(), ids)
	if err != nil {
		t.Fatalf("FetchClosedMarkets() error = %v", err)
	}

	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	if len(batches[0]) != 20 || len(batches[1]) != 20 || len(batches[2]) != 5 {
		t.Errorf("batch sizes = %d/%d/%d, want 20/20/5",
			len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestFetchClosedMarkets_EmptyInput(t *testing.T) {
	client := NewClient("http://unused", "http://unused", zap.NewNop())
	markets, err := client.FetchClosedMarkets(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchClosedMarkets() error = %v", err)
	}
	if markets != nil {
		t.Errorf("markets = %v, want nil without any request", markets)
	}
}

func TestFetchClosedMarkets_UndecodableListsAreTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{
			"conditionId": "cond-1",
			"closed": true,
			"outcomes": "not json"
		}]`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, zap.NewNop())
	markets, err := client.FetchClosedMarkets(context.Background(), []string{"cond-1"})
	if err != nil {
		t.Fatalf("FetchClosedMarkets() error = %v", err)
	}
	if len(markets) != 1 || markets[0].Outcomes != nil {
		t.Errorf("markets = %+v, want entry with no decoded outcomes", markets)
	}
}
