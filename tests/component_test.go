package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"ticketchain/db"
	"ticketchain/entities"
	"ticketchain/message"
	"ticketchain/migrations"
	"ticketchain/pkg/attestation"
	"ticketchain/service"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent(t *testing.T) {
	if os.Getenv("POSTGRES_URL") == "" || os.Getenv("REDIS_ADDR") == "" {
		t.Skip("POSTGRES_URL and REDIS_ADDR not set")
	}

	conn, err := db.NewDBConn(os.Getenv("POSTGRES_URL"))
	require.NoError(t, err)
	defer conn.Close()
	conn.MigrateSchema()

	rdb := message.NewRedisClient(os.Getenv("REDIS_ADDR"))
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		svc := service.New(rdb, conn, "8080", 0)
		assert.NoError(t, svc.Run(ctx))
	}()
	waitForHttpServer(t)

	organizerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	organizer := crypto.PubkeyToAddress(organizerKey.PublicKey).Hex()

	holderKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	holder := crypto.PubkeyToAddress(holderKey.PublicKey).Hex()

	buyerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	buyer := crypto.PubkeyToAddress(buyerKey.PublicKey).Hex()

	// create an event and mint a ticket
	var created entities.EventCreateResponse
	status := postJSON(t, "/events", map[string]any{
		"name":          "go conf",
		"price":         100,
		"total_tickets": 10,
		"organizer":     organizer,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	eventID := created.EventID

	var minted entities.TicketMintResponse
	status = postJSON(t, fmt.Sprintf("/events/%d/withdrawals", eventID), map[string]any{
		"caller": organizer,
	}, nil)
	require.Equal(t, http.StatusConflict, status, "withdrawal before any sale must fail with NoRevenue")

	status = postJSON(t, "/tickets", map[string]any{
		"event_id":     eventID,
		"owner":        holder,
		"metadata_uri": "ipfs://go-conf/1",
		"payment":      120,
	}, &minted)
	require.Equal(t, http.StatusCreated, status)
	ticketID := minted.TicketID

	var ticket entities.Ticket
	status = getJSON(t, fmt.Sprintf("/tickets/%d", ticketID), &ticket)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, holder, ticket.Owner)
	assert.Equal(t, eventID, ticket.EventID)

	// revenue retained the excess payment and is withdrawable exactly once
	var revenue struct {
		Revenue uint64 `json:"revenue"`
	}
	status = getJSON(t, fmt.Sprintf("/events/%d/revenue", eventID), &revenue)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(120), revenue.Revenue)

	var withdrawal struct {
		Amount uint64 `json:"amount"`
	}
	status = postJSON(t, fmt.Sprintf("/events/%d/withdrawals", eventID), map[string]any{
		"caller": organizer,
	}, &withdrawal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(120), withdrawal.Amount)

	var organizerPayout entities.Payout
	status = getJSON(t, fmt.Sprintf("/accounts/%s/payout", organizer), &organizerPayout)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(120), organizerPayout.Balance)

	// list and resell with an overpaying buyer
	status = postJSON(t, fmt.Sprintf("/tickets/%d/listing", ticketID), map[string]any{
		"caller": holder,
		"price":  200,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var rejection apiError
	status = postJSON(t, fmt.Sprintf("/tickets/%d/purchase", ticketID), map[string]any{
		"caller":  holder,
		"payment": 200,
	}, &rejection)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SelfPurchase", rejection.Kind)

	status = postJSON(t, fmt.Sprintf("/tickets/%d/purchase", ticketID), map[string]any{
		"caller":  buyer,
		"payment": 230,
	}, nil)
	require.Equal(t, http.StatusNoContent, status)

	status = getJSON(t, fmt.Sprintf("/tickets/%d", ticketID), &ticket)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, buyer, ticket.Owner)

	var sellerPayout entities.Payout
	status = getJSON(t, fmt.Sprintf("/accounts/%s/payout", holder), &sellerPayout)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(200), sellerPayout.Balance)

	var buyerPayout entities.Payout
	status = getJSON(t, fmt.Sprintf("/accounts/%s/payout", buyer), &buyerPayout)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(30), buyerPayout.Balance, "overpayment refunded to the buyer")

	// the new owner's signed attestation checks the ticket in, exactly once
	timestamp := time.Now().Unix()
	checkInMessage := attestation.Message(ticketID, timestamp)
	signature, err := attestation.Sign(checkInMessage, buyerKey)
	require.NoError(t, err)

	checkInBody := map[string]any{
		"ticket_id": ticketID,
		"caller":    organizer,
		"message":   checkInMessage,
		"signature": hexutil.Encode(signature),
		"timestamp": timestamp,
	}
	status = postJSON(t, fmt.Sprintf("/events/%d/check-ins", eventID), checkInBody, nil)
	require.Equal(t, http.StatusNoContent, status)

	rejection = apiError{}
	status = postJSON(t, fmt.Sprintf("/events/%d/check-ins", eventID), checkInBody, &rejection)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AlreadyCheckedIn", rejection.Kind)

	assertEventStats(t, eventID, buyer, ticketID)

	assertReadModelRebuild(t, conn, eventID, ticketID)
}

// The stats view is eventually consistent, fed by the outbox-forwarded
// events.
func assertEventStats(t *testing.T, eventID int64, owner string, ticketID int64) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(fmt.Sprintf("%s/ops/events/%d", baseURL, eventID))
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}

			var stats entities.EventStats
			if !assert.NoError(t, json.NewDecoder(resp.Body).Decode(&stats)) {
				return
			}

			assert.Equal(t, "go conf", stats.Name)
			assert.Equal(t, 1, stats.TicketsSold)
			assert.Equal(t, 1, stats.CheckedIn)
			assert.Equal(t, 1, stats.Resales)
			assert.Equal(t, uint64(120), stats.RevenueWithdrawn)
			assert.Equal(t, owner, stats.Tickets[fmt.Sprint(ticketID)].Owner)
		},
		20*time.Second,
		100*time.Millisecond,
	)
}

// Wipes the stats read model and replays the data lake into it.
func assertReadModelRebuild(t *testing.T, conn db.DB, eventID, ticketID int64) {
	t.Helper()

	ctx := context.Background()

	// wait for the archive consumers to store the full event trail
	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			var count int
			if !assert.NoError(t, conn.Conn.GetContext(ctx, &count, `
				SELECT count(*) FROM events WHERE event_payload->>'event_id' = $1
			`, fmt.Sprint(eventID))) {
				return
			}
			// created, minted, listed, resold, checked in, withdrawn
			assert.GreaterOrEqual(t, count, 6)
		},
		20*time.Second,
		100*time.Millisecond,
	)

	_, err := conn.Conn.ExecContext(ctx, `DELETE FROM read_model_event_stats`)
	require.NoError(t, err)

	dataLake := db.NewDataLakeRepository(&conn)
	readModel := db.NewEventStatsReadModel(&conn, nil)
	require.NoError(t, migrations.RebuildEventStats(ctx, dataLake, readModel))

	stats, err := readModel.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TicketsSold)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, 1, stats.Resales)
	assert.Equal(t, uint64(120), stats.RevenueWithdrawn)
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(baseURL + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode) {
				return
			}
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
