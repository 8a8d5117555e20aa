package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"ticketchain/entities"
	"ticketchain/message/outbox"
	"ticketchain/pkg/attestation"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *DB
var getDbOnce sync.Once

func getDb(t *testing.T) *DB {
	t.Helper()

	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL not set")
	}

	getDbOnce.Do(func() {
		conn, err := NewDBConn(os.Getenv("POSTGRES_URL"))
		if err != nil {
			panic(err)
		}
		conn.MigrateSchema()

		// initializes the outbox tables the ledger transactions write to
		outbox.SubscribeForPGMessages(conn.Conn, watermill.NopLogger{})

		testDB = &conn
	})

	return testDB
}

func newAddress(t *testing.T) string {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func createTestEvent(t *testing.T, db *DB, organizer string, price uint64, totalTickets int, soulBound bool) int64 {
	t.Helper()

	registry := NewEventRegistry(db)
	eventID, err := registry.Create(context.Background(), entities.Event{
		Name:         "test event",
		Price:        price,
		TotalTickets: totalTickets,
		Organizer:    organizer,
		SoulBound:    soulBound,
	})
	require.NoError(t, err)

	return eventID
}

func assertKind(t *testing.T, err error, kind entities.ErrorKind) {
	t.Helper()

	got, ok := entities.KindOf(err)
	require.Truef(t, ok, "expected a ledger error, got: %v", err)
	assert.Equal(t, kind, got)
}

func TestEventRegistry(t *testing.T) {
	db := getDb(t)
	registry := NewEventRegistry(db)
	ctx := context.Background()

	organizer := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 100, 3, false)

	event, err := registry.ByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, "test event", event.Name)
	assert.Equal(t, uint64(100), event.Price)
	assert.Equal(t, 3, event.TotalTickets)
	assert.Equal(t, 0, event.TicketsSold)
	assert.Equal(t, organizer, event.Organizer)
	assert.True(t, event.Active)
	assert.False(t, event.SoulBound)

	_, err = registry.ByID(ctx, 999999999)
	assertKind(t, err, entities.ErrNotFound)

	err = registry.SetActive(ctx, eventID, newAddress(t), false)
	assertKind(t, err, entities.ErrUnauthorized)

	err = registry.SetActive(ctx, eventID, organizer, false)
	require.NoError(t, err)

	event, err = registry.ByID(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, event.Active)

	events, err := registry.All(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestMint(t *testing.T) {
	db := getDb(t)
	registry := NewEventRegistry(db)
	ticketRepo := NewTicketRepository(db)
	ctx := context.Background()

	organizer := newAddress(t)
	buyer := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 100, 2, false)

	_, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: 999999999, Owner: buyer, Payment: 100,
	})
	assertKind(t, err, entities.ErrNotFound)

	_, err = ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: buyer, Payment: 99,
	})
	assertKind(t, err, entities.ErrInsufficientPayment)

	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: buyer, MetadataURI: "ipfs://ticket-1", Payment: 100,
	})
	require.NoError(t, err)

	ticket, err := ticketRepo.ByID(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, buyer, ticket.Owner)
	assert.Equal(t, eventID, ticket.EventID)
	assert.Equal(t, "ipfs://ticket-1", ticket.MetadataURI)
	assert.False(t, ticket.CheckedIn())

	// excess payment is retained by the event's revenue
	_, err = ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: newAddress(t), Payment: 150,
	})
	require.NoError(t, err)

	event, err := registry.ByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, event.TicketsSold)
	assert.Equal(t, uint64(250), event.Revenue)

	holders, err := ticketRepo.Holders(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, buyer, holders[0])

	_, err = ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: newAddress(t), Payment: 100,
	})
	assertKind(t, err, entities.ErrSoldOut)

	inactiveEventID := createTestEvent(t, db, organizer, 100, 2, false)
	require.NoError(t, registry.SetActive(ctx, inactiveEventID, organizer, false))

	_, err = ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: inactiveEventID, Owner: buyer, Payment: 100,
	})
	assertKind(t, err, entities.ErrEventInactive)
}

func TestSoulBound(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	marketRepo := NewMarketRepository(db)
	ctx := context.Background()

	organizer := newAddress(t)
	holder := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 0, 5, true)

	// issuance is permitted for soul-bound events
	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: holder, Payment: 0,
	})
	require.NoError(t, err)

	err = ticketRepo.Transfer(ctx, ticketID, holder, newAddress(t))
	assertKind(t, err, entities.ErrTransferNotAllowed)

	err = marketRepo.List(ctx, ticketID, holder, 50)
	assertKind(t, err, entities.ErrSoulBound)

	ticket, err := ticketRepo.ByID(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, holder, ticket.Owner)
}

func TestMarket(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	marketRepo := NewMarketRepository(db)
	payoutRepo := NewPayoutRepository(db)
	ctx := context.Background()

	organizer := newAddress(t)
	seller := newAddress(t)
	buyer := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 100, 5, false)

	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: seller, Payment: 100,
	})
	require.NoError(t, err)

	err = marketRepo.Buy(ctx, ticketID, buyer, 200)
	assertKind(t, err, entities.ErrNotListed)

	err = marketRepo.List(ctx, ticketID, buyer, 200)
	assertKind(t, err, entities.ErrUnauthorized)

	err = marketRepo.List(ctx, ticketID, seller, 200)
	require.NoError(t, err)

	err = marketRepo.List(ctx, ticketID, seller, 300)
	assertKind(t, err, entities.ErrAlreadyListed)

	listing, err := marketRepo.ListingByTicket(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, seller, listing.Seller)
	assert.Equal(t, uint64(200), listing.Price)
	assert.True(t, listing.Active)

	err = marketRepo.Cancel(ctx, ticketID, buyer)
	assertKind(t, err, entities.ErrUnauthorized)

	err = marketRepo.Buy(ctx, ticketID, buyer, 199)
	assertKind(t, err, entities.ErrInsufficientPayment)

	err = marketRepo.Buy(ctx, ticketID, seller, 200)
	assertKind(t, err, entities.ErrSelfPurchase)

	// overpayment is refunded to the buyer's payout balance
	err = marketRepo.Buy(ctx, ticketID, buyer, 250)
	require.NoError(t, err)

	ticket, err := ticketRepo.ByID(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, buyer, ticket.Owner)

	_, err = marketRepo.ListingByTicket(ctx, ticketID)
	assertKind(t, err, entities.ErrNotListed)

	sellerPayout, err := payoutRepo.Balance(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), sellerPayout.Balance)

	buyerPayout, err := payoutRepo.Balance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), buyerPayout.Balance)

	err = marketRepo.Cancel(ctx, ticketID, buyer)
	assertKind(t, err, entities.ErrNotListed)
}

func TestTransferCancelsListing(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	marketRepo := NewMarketRepository(db)
	ctx := context.Background()

	organizer := newAddress(t)
	seller := newAddress(t)
	recipient := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 100, 5, false)

	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: seller, Payment: 100,
	})
	require.NoError(t, err)
	require.NoError(t, marketRepo.List(ctx, ticketID, seller, 500))

	err = ticketRepo.Transfer(ctx, ticketID, recipient, recipient)
	assertKind(t, err, entities.ErrUnauthorized)

	require.NoError(t, ticketRepo.Transfer(ctx, ticketID, seller, recipient))

	ticket, err := ticketRepo.ByID(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, recipient, ticket.Owner)

	_, err = marketRepo.ListingByTicket(ctx, ticketID)
	assertKind(t, err, entities.ErrNotListed)
}

func TestWithdraw(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	revenueRepo := NewRevenueRepository(db)
	payoutRepo := NewPayoutRepository(db)
	ctx := context.Background()

	organizer := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 100, 5, false)

	_, err := revenueRepo.Withdraw(ctx, eventID, organizer)
	assertKind(t, err, entities.ErrNoRevenue)

	_, err = ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: newAddress(t), Payment: 130,
	})
	require.NoError(t, err)

	revenue, err := revenueRepo.Revenue(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, uint64(130), revenue)

	_, err = revenueRepo.Withdraw(ctx, eventID, newAddress(t))
	assertKind(t, err, entities.ErrUnauthorized)

	amount, err := revenueRepo.Withdraw(ctx, eventID, organizer)
	require.NoError(t, err)
	assert.Equal(t, uint64(130), amount)

	revenue, err = revenueRepo.Revenue(ctx, eventID)
	require.NoError(t, err)
	assert.Zero(t, revenue)

	payout, err := payoutRepo.Balance(ctx, organizer)
	require.NoError(t, err)
	assert.Equal(t, uint64(130), payout.Balance)

	_, err = revenueRepo.Withdraw(ctx, eventID, organizer)
	assertKind(t, err, entities.ErrNoRevenue)
}

func TestCheckIn(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	verifier := NewCheckInVerifier(db, 0)
	ctx := context.Background()

	organizer := newAddress(t)
	holderKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	holder := crypto.PubkeyToAddress(holderKey.PublicKey).Hex()

	eventID := createTestEvent(t, db, organizer, 100, 5, false)
	otherEventID := createTestEvent(t, db, organizer, 100, 5, false)

	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: holder, Payment: 100,
	})
	require.NoError(t, err)

	timestamp := time.Now().Unix()
	message := attestation.Message(ticketID, timestamp)
	signature, err := attestation.Sign(message, holderKey)
	require.NoError(t, err)

	request := entities.CheckInRequest{
		EventID:   eventID,
		TicketID:  ticketID,
		Caller:    organizer,
		Message:   message,
		Signature: signature,
		Timestamp: timestamp,
	}

	wrongEvent := request
	wrongEvent.EventID = otherEventID
	assertKind(t, verifier.CheckIn(ctx, wrongEvent), entities.ErrEventMismatch)

	wrongCaller := request
	wrongCaller.Caller = newAddress(t)
	assertKind(t, verifier.CheckIn(ctx, wrongCaller), entities.ErrUnauthorized)

	strangerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	strangerSig, err := attestation.Sign(message, strangerKey)
	require.NoError(t, err)

	wrongSigner := request
	wrongSigner.Signature = strangerSig
	assertKind(t, verifier.CheckIn(ctx, wrongSigner), entities.ErrInvalidSignature)

	otherMessage := attestation.Message(ticketID+1, timestamp)
	otherSig, err := attestation.Sign(otherMessage, holderKey)
	require.NoError(t, err)

	wrongMessage := request
	wrongMessage.Message = otherMessage
	wrongMessage.Signature = otherSig
	assertKind(t, verifier.CheckIn(ctx, wrongMessage), entities.ErrMessageMismatch)

	require.NoError(t, verifier.CheckIn(ctx, request))

	ticket, err := ticketRepo.ByID(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, timestamp, ticket.CheckedInAt)

	assertKind(t, verifier.CheckIn(ctx, request), entities.ErrAlreadyCheckedIn)
}

func TestCheckInCancelsListing(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	marketRepo := NewMarketRepository(db)
	verifier := NewCheckInVerifier(db, 0)
	ctx := context.Background()

	organizer := newAddress(t)
	holderKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	holder := crypto.PubkeyToAddress(holderKey.PublicKey).Hex()

	eventID := createTestEvent(t, db, organizer, 100, 5, false)
	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: holder, Payment: 100,
	})
	require.NoError(t, err)
	require.NoError(t, marketRepo.List(ctx, ticketID, holder, 300))

	timestamp := time.Now().Unix()
	message := attestation.Message(ticketID, timestamp)
	signature, err := attestation.Sign(message, holderKey)
	require.NoError(t, err)

	require.NoError(t, verifier.CheckIn(ctx, entities.CheckInRequest{
		EventID:   eventID,
		TicketID:  ticketID,
		Caller:    organizer,
		Message:   message,
		Signature: signature,
		Timestamp: timestamp,
	}))

	// the listing does not survive the check-in, so the consumed ticket
	// cannot be bought or relisted
	_, err = marketRepo.ListingByTicket(ctx, ticketID)
	assertKind(t, err, entities.ErrNotListed)

	err = marketRepo.Buy(ctx, ticketID, newAddress(t), 300)
	assertKind(t, err, entities.ErrNotListed)

	err = marketRepo.List(ctx, ticketID, holder, 300)
	assertKind(t, err, entities.ErrAlreadyCheckedIn)
}

func TestConcurrentMarketOperations(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	marketRepo := NewMarketRepository(db)
	ctx := context.Background()

	organizer := newAddress(t)
	seller := newAddress(t)
	buyer := newAddress(t)
	eventID := createTestEvent(t, db, organizer, 100, 5, false)

	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: seller, Payment: 100,
	})
	require.NoError(t, err)
	require.NoError(t, marketRepo.List(ctx, ticketID, seller, 200))

	// every operation locks ticket, event, listing in the same order, so
	// concurrent calls either succeed, lose a serialization conflict or
	// fail a business check
	assertExpected := func(err error) {
		if err == nil || IsSerializationFailure(err) {
			return
		}
		_, ok := entities.KindOf(err)
		assert.Truef(t, ok, "unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- marketRepo.List(ctx, ticketID, seller, 200)
			errs <- marketRepo.Cancel(ctx, ticketID, seller)
		}()
		go func() {
			defer wg.Done()
			errs <- marketRepo.Buy(ctx, ticketID, buyer, 200)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assertExpected(err)
	}
}

func TestCheckInFreshnessWindow(t *testing.T) {
	db := getDb(t)
	ticketRepo := NewTicketRepository(db)
	marketRepo := NewMarketRepository(db)
	ctx := context.Background()

	verifier := NewCheckInVerifier(db, time.Minute)

	organizer := newAddress(t)
	holderKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	holder := crypto.PubkeyToAddress(holderKey.PublicKey).Hex()

	eventID := createTestEvent(t, db, organizer, 100, 5, false)
	ticketID, err := ticketRepo.Mint(ctx, entities.MintRequest{
		EventID: eventID, Owner: holder, Payment: 100,
	})
	require.NoError(t, err)

	timestamp := time.Now().Add(-time.Hour).Unix()
	message := attestation.Message(ticketID, timestamp)
	signature, err := attestation.Sign(message, holderKey)
	require.NoError(t, err)

	err = verifier.CheckIn(ctx, entities.CheckInRequest{
		EventID:   eventID,
		TicketID:  ticketID,
		Caller:    organizer,
		Message:   message,
		Signature: signature,
		Timestamp: timestamp,
	})
	assertKind(t, err, entities.ErrAttestationExpired)

	// expired attestation leaves the ticket usable
	require.NoError(t, marketRepo.List(ctx, ticketID, holder, 10))
}
