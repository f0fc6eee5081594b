package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// graphqlStub serves a canned GraphQL data payload and records the last
// request for assertions.
type graphqlStub struct {
	data     string
	errors   string
	status   int
	lastAuth string
	lastBody graphqlRequest
}

func (s *graphqlStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lastAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&s.lastBody)

		if s.status != 0 {
			w.WriteHeader(s.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if s.errors != "" {
			fmt.Fprintf(w, `{"errors":[{"message":%q}]}`, s.errors)
			return
		}
		fmt.Fprintf(w, `{"data":%s}`, s.data)
	}
}

func TestFetchMarkets_DecodesAndDerivesStatus(t *testing.T) {
	future := time.Now().Add(48 * time.Hour).Unix()
	past := time.Now().Add(-48 * time.Hour).Unix()

	stub := &graphqlStub{data: fmt.Sprintf(`{
		"markets": [
			{
				"id": "0xAAAA000000000000000000000000000000000001",
				"question": "Will it rain tomorrow?",
				"slug": "rain-tomorrow",
				"marketType": "cpmm",
				"outcomeNo": "No",
				"outcomeYes": "Yes",
				"stakeToken": "0xBBBB000000000000000000000000000000000002",
				"feeBps": "300",
				"creatorFeeBps": "50",
				"timeDecayBps": "0",
				"createdAt": "1700000000",
				"cutoffTime": "%d",
				"resolved": false,
				"winningOutcome": null,
				"volume": "1500000000"
			},
			{
				"id": "0xaaaa000000000000000000000000000000000003",
				"question": "Expired parimutuel",
				"slug": "",
				"marketType": "parimutuel",
				"outcomeNo": "No",
				"outcomeYes": "Yes",
				"stakeToken": "0xbbbb000000000000000000000000000000000002",
				"feeBps": "200",
				"creatorFeeBps": "0",
				"timeDecayBps": "500",
				"createdAt": "1700000000",
				"cutoffTime": "%d",
				"resolved": true,
				"winningOutcome": "yes",
				"volume": "0"
			}
		]
	}`, future, past)}

	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	markets, err := client.FetchMarkets(context.Background(), time.Unix(1700000000, 0), 100)
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("got %d markets, want 2", len(markets))
	}

	if stub.lastAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", stub.lastAuth)
	}
	if stub.lastBody.Variables["since"] != "1700000000" {
		t.Errorf("since variable = %v, want 1700000000", stub.lastBody.Variables["since"])
	}

	active := markets[0]
	if active.ID != "0xaaaa000000000000000000000000000000000001" {
		t.Errorf("id not lowercased: %s", active.ID)
	}
	if active.Status != domain.MarketStatusActive {
		t.Errorf("status = %s, want active", active.Status)
	}
	if active.FeeBps != 300 || active.CreatorFeeBps != 50 {
		t.Errorf("fees = %d/%d, want 300/50", active.FeeBps, active.CreatorFeeBps)
	}
	if active.Volume.String() != "1500000000" {
		t.Errorf("volume = %s", active.Volume)
	}

	resolved := markets[1]
	if resolved.Status != domain.MarketStatusResolved {
		t.Errorf("status = %s, want resolved", resolved.Status)
	}
	if resolved.Winner == nil || *resolved.Winner != domain.OutcomeYes {
		t.Errorf("winner = %v, want yes", resolved.Winner)
	}
}

func TestFetchMarkets_RejectsUnknownMarketType(t *testing.T) {
	stub := &graphqlStub{data: `{
		"markets": [{
			"id": "0x01",
			"marketType": "lmsr",
			"feeBps": "0", "creatorFeeBps": "0", "timeDecayBps": "0",
			"createdAt": "1700000000", "cutoffTime": "1700000000",
			"volume": "0"
		}]
	}`}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	_, err := NewClient(srv.URL, "").FetchMarkets(context.Background(), time.Time{}, 10)
	if err == nil {
		t.Fatal("expected error for unknown market type")
	}
}

func TestFetchDeposits_MapsSideAndLowercases(t *testing.T) {
	stub := &graphqlStub{data: `{
		"deposits": [
			{
				"id": "0xdead:1",
				"market": "0xAAAA000000000000000000000000000000000003",
				"account": "0xCCCC000000000000000000000000000000000004",
				"side": 1,
				"amount": "25000000",
				"transactionHash": "0xdead",
				"timestamp": "1700000100"
			},
			{
				"id": "0xdead:2",
				"market": "0xaaaa000000000000000000000000000000000003",
				"account": "0xcccc000000000000000000000000000000000004",
				"side": 0,
				"amount": "5000000",
				"transactionHash": "0xdead",
				"timestamp": "1700000200"
			}
		]
	}`}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	deposits, err := NewClient(srv.URL, "").FetchDeposits(context.Background(), time.Unix(1700000000, 0), 100)
	if err != nil {
		t.Fatalf("FetchDeposits: %v", err)
	}
	if len(deposits) != 2 {
		t.Fatalf("got %d deposits, want 2", len(deposits))
	}

	if deposits[0].Side != domain.OutcomeYes {
		t.Errorf("side = %v, want yes", deposits[0].Side)
	}
	if deposits[1].Side != domain.OutcomeNo {
		t.Errorf("side = %v, want no", deposits[1].Side)
	}
	if deposits[0].MarketID != "0xaaaa000000000000000000000000000000000003" {
		t.Errorf("market not lowercased: %s", deposits[0].MarketID)
	}
	if deposits[0].Amount.String() != "25000000" {
		t.Errorf("amount = %s", deposits[0].Amount)
	}
	if !deposits[0].Timestamp.Equal(time.Unix(1700000100, 0)) {
		t.Errorf("timestamp = %s", deposits[0].Timestamp)
	}
}

func TestFetchLatestBlock(t *testing.T) {
	stub := &graphqlStub{data: `{"_meta":{"block":{"number":123456}}}`}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	n, err := NewClient(srv.URL, "").FetchLatestBlock(context.Background())
	if err != nil {
		t.Fatalf("FetchLatestBlock: %v", err)
	}
	if n != 123456 {
		t.Errorf("block = %d, want 123456", n)
	}
}

func TestDoQuery_SurfacesGraphQLErrors(t *testing.T) {
	stub := &graphqlStub{errors: "indexing in progress"}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	_, err := NewClient(srv.URL, "").FetchLatestBlock(context.Background())
	if err == nil {
		t.Fatal("expected graphql error")
	}
}

func TestDoQuery_SurfacesHTTPErrors(t *testing.T) {
	stub := &graphqlStub{status: http.StatusBadGateway}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	_, err := NewClient(srv.URL, "").FetchLatestBlock(context.Background())
	if err == nil {
		t.Fatal("expected HTTP error")
	}
}
