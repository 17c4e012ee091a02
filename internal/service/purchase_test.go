package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rifadigital/rifa-api/internal/config"
	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository"
	"github.com/rifadigital/rifa-api/internal/service"
)

// fakeStore backs both repository interfaces with the same in-memory state,
// guarded by one mutex so concurrent reservations contend the way rows under
// a unique index would.
type fakeStore struct {
	mu             sync.Mutex
	raffles        map[uint]domain.Raffle
	purchases      map[uint]domain.Purchase
	tickets        map[uint]map[int]domain.Ticket // raffleID -> number
	nextRaffleID   uint
	nextPurchaseID uint
	nextTicketID   uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		raffles:   make(map[uint]domain.Raffle),
		purchases: make(map[uint]domain.Purchase),
		tickets:   make(map[uint]map[int]domain.Ticket),
	}
}

func (f *fakeStore) addRaffle(raffle domain.Raffle) domain.Raffle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextRaffleID++
	raffle.ID = f.nextRaffleID
	f.raffles[raffle.ID] = raffle
	f.tickets[raffle.ID] = make(map[int]domain.Ticket)

	return raffle
}

func (f *fakeStore) Create(_ context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	return f.addRaffle(raffle), nil
}

func (f *fakeStore) FindByID(_ context.Context, id uint) (domain.Raffle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raffle, ok := f.raffles[id]
	if !ok {
		return domain.Raffle{}, repository.ErrRaffleNotFound
	}

	return raffle, nil
}

func (f *fakeStore) FindAll(_ context.Context) ([]domain.Raffle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all := make([]domain.Raffle, 0, len(f.raffles))
	for _, raffle := range f.raffles {
		all = append(all, raffle)
	}

	return all, nil
}

func (f *fakeStore) Cancel(_ context.Context, id uint) (domain.Raffle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raffle, ok := f.raffles[id]
	if !ok {
		return domain.Raffle{}, repository.ErrRaffleNotFound
	}
	if raffle.Status != domain.RaffleStatusActive {
		return domain.Raffle{}, repository.ErrRaffleNotActive
	}

	raffle.Status = domain.RaffleStatusCancelled
	f.raffles[id] = raffle

	return raffle, nil
}

func (f *fakeStore) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.raffles[id]; !ok {
		return repository.ErrRaffleNotFound
	}
	for _, purchase := range f.purchases {
		if purchase.RaffleID == id {
			return repository.ErrRaffleHasSales
		}
	}
	delete(f.raffles, id)
	delete(f.tickets, id)

	return nil
}

func (f *fakeStore) Finish(_ context.Context, id uint, winningNumber int) (domain.Raffle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raffle, ok := f.raffles[id]
	if !ok {
		return domain.Raffle{}, repository.ErrRaffleNotFound
	}
	if raffle.Status != domain.RaffleStatusActive {
		return domain.Raffle{}, repository.ErrAlreadyFinalized
	}
	if !raffle.ContainsNumber(winningNumber) {
		return domain.Raffle{}, repository.ErrInvalidTicketNumber
	}

	raffle.Status = domain.RaffleStatusFinished
	raffle.WinningNumber = &winningNumber
	if ticket, sold := f.tickets[id][winningNumber]; sold && ticket.Status == domain.TicketStatusSold {
		winner := ticket.UserID
		raffle.WinnerUserID = &winner
	}
	f.raffles[id] = raffle

	return raffle, nil
}

func (f *fakeStore) FindUnavailableTickets(_ context.Context, raffleID uint, now time.Time) ([]domain.UnavailableTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var unavailable []domain.UnavailableTicket
	for _, ticket := range f.tickets[raffleID] {
		if ticket.Lapsed(now) {
			continue
		}
		unavailable = append(unavailable, domain.UnavailableTicket{Number: ticket.Number, Status: ticket.Status})
	}

	return unavailable, nil
}

func (f *fakeStore) FindTicketsByPurchaseID(_ context.Context, purchaseID uint) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var tickets []domain.Ticket
	for _, byNumber := range f.tickets {
		for _, ticket := range byNumber {
			if ticket.PurchaseID == purchaseID {
				tickets = append(tickets, ticket)
			}
		}
	}

	return tickets, nil
}

func (f *fakeStore) Reserve(_ context.Context, raffleID uint, numbers []int, userID uint, amount int, holdUntil time.Time) (domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raffle, ok := f.raffles[raffleID]
	if !ok {
		return domain.Purchase{}, repository.ErrRaffleNotFound
	}
	if raffle.Status != domain.RaffleStatusActive {
		return domain.Purchase{}, repository.ErrRaffleNotActive
	}

	now := time.Now()
	for _, n := range numbers {
		ticket, taken := f.tickets[raffleID][n]
		if !taken {
			continue
		}
		if ticket.Lapsed(now) {
			delete(f.tickets[raffleID], n)
			continue
		}
		return domain.Purchase{}, repository.TicketUnavailableError{Number: n}
	}

	f.nextPurchaseID++
	purchase := domain.Purchase{
		ID:          f.nextPurchaseID,
		UserID:      userID,
		RaffleID:    raffleID,
		TicketCount: len(numbers),
		TotalAmount: amount,
		Status:      domain.PurchaseStatusPendingPayment,
		ExpiresAt:   holdUntil,
	}
	f.purchases[purchase.ID] = purchase

	for _, n := range numbers {
		f.nextTicketID++
		until := holdUntil
		f.tickets[raffleID][n] = domain.Ticket{
			ID:            f.nextTicketID,
			RaffleID:      raffleID,
			Number:        n,
			Status:        domain.TicketStatusReserved,
			UserID:        userID,
			PurchaseID:    purchase.ID,
			ReservedUntil: &until,
		}
	}

	return purchase, nil
}

func (f *fakeStore) FindPurchaseByID(_ context.Context, id uint) (domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	purchase, ok := f.purchases[id]
	if !ok {
		return domain.Purchase{}, repository.ErrPurchaseNotFound
	}

	return purchase, nil
}

func (f *fakeStore) FindByUserID(_ context.Context, userID uint) ([]domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var purchases []domain.Purchase
	for _, purchase := range f.purchases {
		if purchase.UserID == userID {
			purchases = append(purchases, purchase)
		}
	}

	return purchases, nil
}

func (f *fakeStore) FindPendingConfirmation(_ context.Context) ([]domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var purchases []domain.Purchase
	for _, purchase := range f.purchases {
		if purchase.Status == domain.PurchaseStatusPendingConfirmation {
			purchases = append(purchases, purchase)
		}
	}

	return purchases, nil
}

func (f *fakeStore) SubmitProof(_ context.Context, purchaseID uint, proofURL string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	purchase, ok := f.purchases[purchaseID]
	if !ok {
		return repository.ErrPurchaseNotFound
	}
	if purchase.Status != domain.PurchaseStatusPendingPayment {
		return repository.ErrInvalidStateTransition
	}
	if purchase.HoldLapsed(now) {
		f.expireLocked(purchase)
		return repository.ErrPurchaseExpired
	}

	// Submitted purchases are no longer hold-bounded; the claim persists
	// until an admin settles them.
	for n, ticket := range f.tickets[purchase.RaffleID] {
		if ticket.PurchaseID == purchaseID {
			ticket.ReservedUntil = nil
			f.tickets[purchase.RaffleID][n] = ticket
		}
	}

	purchase.PaymentProofURL = &proofURL
	purchase.Status = domain.PurchaseStatusPendingConfirmation
	f.purchases[purchaseID] = purchase

	return nil
}

func (f *fakeStore) Approve(_ context.Context, purchaseID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	purchase, ok := f.purchases[purchaseID]
	if !ok {
		return repository.ErrPurchaseNotFound
	}
	if purchase.Status == domain.PurchaseStatusCompleted {
		return repository.ErrAlreadyFinalized
	}
	if purchase.Status != domain.PurchaseStatusPendingConfirmation {
		return repository.ErrInvalidStateTransition
	}

	for n, ticket := range f.tickets[purchase.RaffleID] {
		if ticket.PurchaseID != purchaseID {
			continue
		}
		ticket.Status = domain.TicketStatusSold
		ticket.ReservedUntil = nil
		f.tickets[purchase.RaffleID][n] = ticket
	}

	raffle := f.raffles[purchase.RaffleID]
	raffle.TicketsSold += purchase.TicketCount
	f.raffles[purchase.RaffleID] = raffle

	purchase.Status = domain.PurchaseStatusCompleted
	f.purchases[purchaseID] = purchase

	return nil
}

func (f *fakeStore) Reject(_ context.Context, purchaseID uint, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	purchase, ok := f.purchases[purchaseID]
	if !ok {
		return repository.ErrPurchaseNotFound
	}
	if purchase.Status == domain.PurchaseStatusCompleted {
		return repository.ErrAlreadyFinalized
	}
	if purchase.Status != domain.PurchaseStatusPendingConfirmation {
		return repository.ErrInvalidStateTransition
	}

	f.releaseTicketsLocked(purchaseID, purchase.RaffleID)
	purchase.Status = domain.PurchaseStatusRejected
	purchase.RejectionReason = &reason
	f.purchases[purchaseID] = purchase

	return nil
}

func (f *fakeStore) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var expired int64
	for _, purchase := range f.purchases {
		if purchase.HoldLapsed(now) {
			f.expireLocked(purchase)
			expired++
		}
	}

	return expired, nil
}

func (f *fakeStore) expireLocked(purchase domain.Purchase) {
	f.releaseTicketsLocked(purchase.ID, purchase.RaffleID)
	purchase.Status = domain.PurchaseStatusExpired
	f.purchases[purchase.ID] = purchase
}

func (f *fakeStore) releaseTicketsLocked(purchaseID, raffleID uint) {
	for n, ticket := range f.tickets[raffleID] {
		if ticket.PurchaseID == purchaseID {
			delete(f.tickets[raffleID], n)
		}
	}
}

// purchaseRepo narrows fakeStore to the purchase interface; FindByID would
// otherwise collide with the raffle lookup of the same name.
type purchaseRepo struct {
	*fakeStore
}

func (r purchaseRepo) FindByID(ctx context.Context, id uint) (domain.Purchase, error) {
	return r.FindPurchaseByID(ctx, id)
}

func newPurchaseService(store *fakeStore) *service.PurchaseService {
	conf := &config.RaffleConfig{
		HoldDuration:  30 * time.Minute,
		SweepInterval: time.Minute,
	}

	return service.NewPurchaseService(purchaseRepo{store}, store, conf)
}

func activeRaffle(store *fakeStore, totalTickets, price int) domain.Raffle {
	return store.addRaffle(domain.Raffle{
		Title:        "Summer Raffle",
		TotalTickets: totalTickets,
		TicketPrice:  price,
		Status:       domain.RaffleStatusActive,
	})
}

func TestPurchaseService_ReserveTickets(t *testing.T) {
	buyer := domain.User{ID: 7, Role: domain.RoleUser}

	t.Run("reserves requested numbers and prices the purchase", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1, 2, 3}, buyer)

		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseStatusPendingPayment, purchase.Status)
		assert.Equal(t, 3, purchase.TicketCount)
		assert.Equal(t, 15000, purchase.TotalAmount)
		assert.Equal(t, buyer.ID, purchase.UserID)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), purchase.ExpiresAt, 5*time.Second)

		tickets, err := store.FindTicketsByPurchaseID(context.Background(), purchase.ID)
		require.NoError(t, err)
		assert.Len(t, tickets, 3)
		for _, ticket := range tickets {
			assert.Equal(t, domain.TicketStatusReserved, ticket.Status)
			assert.Equal(t, buyer.ID, ticket.UserID)
		}
	})

	t.Run("deduplicates repeated numbers", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{5, 5, 5, 9}, buyer)

		require.NoError(t, err)
		assert.Equal(t, 2, purchase.TicketCount)
		assert.Equal(t, 10000, purchase.TotalAmount)
	})

	t.Run("rejects an empty request", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		_, err := svc.ReserveTickets(context.Background(), raffle.ID, nil, buyer)

		assert.ErrorIs(t, err, service.ErrNoTicketNumbers)
	})

	t.Run("rejects numbers outside the raffle range", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		_, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1, 101}, buyer)

		assert.ErrorIs(t, err, service.ErrInvalidTicketNumber)
	})

	t.Run("rejects a cancelled raffle", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		_, err := store.Cancel(context.Background(), raffle.ID)
		require.NoError(t, err)
		svc := newPurchaseService(store)

		_, err = svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)

		assert.ErrorIs(t, err, service.ErrRaffleNotActive)
	})

	t.Run("fails the whole request when one number is taken", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		_, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{2}, domain.User{ID: 99})
		require.NoError(t, err)

		_, err = svc.ReserveTickets(context.Background(), raffle.ID, []int{1, 2, 3}, buyer)

		var unavailable service.TicketUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, 2, unavailable.Number)

		// Nothing partial: 1 and 3 are still free for anyone.
		taken, err := store.FindUnavailableTickets(context.Background(), raffle.ID, time.Now())
		require.NoError(t, err)
		require.Len(t, taken, 1)
		assert.Equal(t, 2, taken[0].Number)
	})

	t.Run("reclaims a lapsed reservation", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		first, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{4}, domain.User{ID: 99})
		require.NoError(t, err)

		// Force the hold into the past.
		store.mu.Lock()
		past := time.Now().Add(-time.Minute)
		ticket := store.tickets[raffle.ID][4]
		ticket.ReservedUntil = &past
		store.tickets[raffle.ID][4] = ticket
		store.mu.Unlock()

		second, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{4}, buyer)

		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, buyer.ID, second.UserID)
	})

	t.Run("exactly one winner under contention", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		const contenders = 16
		var wg sync.WaitGroup
		errs := make([]error, contenders)
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user := domain.User{ID: uint(i + 1)}
				_, errs[i] = svc.ReserveTickets(context.Background(), raffle.ID, []int{42}, user)
			}(i)
		}
		wg.Wait()

		var won, lost int
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			var unavailable service.TicketUnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, 42, unavailable.Number)
			lost++
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, contenders-1, lost)
	})
}

func TestPurchaseService_SubmitPaymentProof(t *testing.T) {
	buyer := domain.User{ID: 7}
	proofURL := "https://cdn.example.com/proofs/123.png"

	t.Run("moves the purchase to pending confirmation", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)
		require.NoError(t, err)

		err = svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL)

		require.NoError(t, err)
		updated, err := store.FindPurchaseByID(context.Background(), purchase.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseStatusPendingConfirmation, updated.Status)
		require.NotNil(t, updated.PaymentProofURL)
		assert.Equal(t, proofURL, *updated.PaymentProofURL)
	})

	t.Run("only the owner may submit", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)
		require.NoError(t, err)

		err = svc.SubmitPaymentProof(context.Background(), purchase.ID, 999, proofURL)

		assert.ErrorIs(t, err, service.ErrNotOwner)
	})

	t.Run("rejects a second submission", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)
		require.NoError(t, err)
		require.NoError(t, svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL))

		err = svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL)

		assert.ErrorIs(t, err, service.ErrInvalidStateTransition)
	})

	t.Run("tickets stay claimed after the original hold timestamp passes", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{10}, buyer)
		require.NoError(t, err)
		require.NoError(t, svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL))

		// Simulate the original hold deadline passing: any remaining ticket
		// deadline moves into the past along with the purchase's. Submission
		// must have detached the tickets from the hold for them to survive.
		store.mu.Lock()
		past := time.Now().Add(-time.Minute)
		p := store.purchases[purchase.ID]
		p.ExpiresAt = past
		store.purchases[purchase.ID] = p
		for n, ticket := range store.tickets[raffle.ID] {
			if ticket.ReservedUntil != nil {
				ticket.ReservedUntil = &past
				store.tickets[raffle.ID][n] = ticket
			}
		}
		store.mu.Unlock()

		// A rival cannot reclaim the number.
		_, err = svc.ReserveTickets(context.Background(), raffle.ID, []int{10}, domain.User{ID: 99})
		var unavailable service.TicketUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, 10, unavailable.Number)

		// Availability still reports it taken.
		taken, err := store.FindUnavailableTickets(context.Background(), raffle.ID, time.Now())
		require.NoError(t, err)
		require.Len(t, taken, 1)
		assert.Equal(t, 10, taken[0].Number)

		// The sweeper leaves it alone.
		expired, err := svc.ExpireOverduePurchases(context.Background())
		require.NoError(t, err)
		assert.Zero(t, expired)

		// Approval still owns all its tickets.
		require.NoError(t, svc.ApprovePurchase(context.Background(), purchase.ID))
		tickets, err := store.FindTicketsByPurchaseID(context.Background(), purchase.ID)
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, domain.TicketStatusSold, tickets[0].Status)
	})

	t.Run("lapsed hold expires the purchase instead", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)

		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)
		require.NoError(t, err)

		store.mu.Lock()
		p := store.purchases[purchase.ID]
		p.ExpiresAt = time.Now().Add(-time.Minute)
		store.purchases[purchase.ID] = p
		store.mu.Unlock()

		err = svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL)

		assert.ErrorIs(t, err, service.ErrPurchaseExpired)
		expired, err := store.FindPurchaseByID(context.Background(), purchase.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseStatusExpired, expired.Status)

		// The number is free again.
		taken, err := store.FindUnavailableTickets(context.Background(), raffle.ID, time.Now())
		require.NoError(t, err)
		assert.Empty(t, taken)
	})
}

func TestPurchaseService_ApprovePurchase(t *testing.T) {
	buyer := domain.User{ID: 7}
	proofURL := "https://cdn.example.com/proofs/123.png"

	setup := func(t *testing.T) (*fakeStore, *service.PurchaseService, domain.Raffle, domain.Purchase) {
		t.Helper()
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)
		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1, 2, 3}, buyer)
		require.NoError(t, err)
		require.NoError(t, svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL))

		return store, svc, raffle, purchase
	}

	t.Run("marks tickets sold and grows the counter", func(t *testing.T) {
		store, svc, raffle, purchase := setup(t)

		err := svc.ApprovePurchase(context.Background(), purchase.ID)

		require.NoError(t, err)
		updated, err := store.FindPurchaseByID(context.Background(), purchase.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseStatusCompleted, updated.Status)

		tickets, err := store.FindTicketsByPurchaseID(context.Background(), purchase.ID)
		require.NoError(t, err)
		require.Len(t, tickets, 3)
		for _, ticket := range tickets {
			assert.Equal(t, domain.TicketStatusSold, ticket.Status)
			assert.Nil(t, ticket.ReservedUntil)
		}

		r, err := store.FindByID(context.Background(), raffle.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, r.TicketsSold)
	})

	t.Run("second approval fails and never double-counts", func(t *testing.T) {
		store, svc, raffle, purchase := setup(t)
		require.NoError(t, svc.ApprovePurchase(context.Background(), purchase.ID))

		err := svc.ApprovePurchase(context.Background(), purchase.ID)

		assert.ErrorIs(t, err, service.ErrAlreadyFinalized)
		r, err := store.FindByID(context.Background(), raffle.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, r.TicketsSold)
	})

	t.Run("cannot approve before proof is submitted", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)
		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)
		require.NoError(t, err)

		err = svc.ApprovePurchase(context.Background(), purchase.ID)

		assert.ErrorIs(t, err, service.ErrInvalidStateTransition)
	})
}

func TestPurchaseService_RejectPurchase(t *testing.T) {
	buyer := domain.User{ID: 7}
	proofURL := "https://cdn.example.com/proofs/123.png"

	t.Run("frees the numbers and records the reason", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)
		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1, 2}, buyer)
		require.NoError(t, err)
		require.NoError(t, svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL))

		err = svc.RejectPurchase(context.Background(), purchase.ID, "proof unreadable")

		require.NoError(t, err)
		rejected, err := store.FindPurchaseByID(context.Background(), purchase.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseStatusRejected, rejected.Status)
		require.NotNil(t, rejected.RejectionReason)
		assert.Equal(t, "proof unreadable", *rejected.RejectionReason)

		taken, err := store.FindUnavailableTickets(context.Background(), raffle.ID, time.Now())
		require.NoError(t, err)
		assert.Empty(t, taken)

		// Rejection is terminal: the buyer starts over with a new reservation.
		again, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1, 2}, buyer)
		require.NoError(t, err)
		assert.NotEqual(t, purchase.ID, again.ID)
	})

	t.Run("cannot reject a completed purchase", func(t *testing.T) {
		store := newFakeStore()
		raffle := activeRaffle(store, 100, 5000)
		svc := newPurchaseService(store)
		purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, buyer)
		require.NoError(t, err)
		require.NoError(t, svc.SubmitPaymentProof(context.Background(), purchase.ID, buyer.ID, proofURL))
		require.NoError(t, svc.ApprovePurchase(context.Background(), purchase.ID))

		err = svc.RejectPurchase(context.Background(), purchase.ID, "too late")

		assert.ErrorIs(t, err, service.ErrAlreadyFinalized)
	})
}

func TestPurchaseService_GetPurchase(t *testing.T) {
	buyer := domain.User{ID: 7, Role: domain.RoleUser}
	admin := domain.User{ID: 1, Role: domain.RoleAdmin}
	stranger := domain.User{ID: 50, Role: domain.RoleUser}

	store := newFakeStore()
	raffle := activeRaffle(store, 100, 5000)
	svc := newPurchaseService(store)
	purchase, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{10, 11}, buyer)
	require.NoError(t, err)

	t.Run("owner sees the purchase with tickets", func(t *testing.T) {
		got, tickets, err := svc.GetPurchase(context.Background(), purchase.ID, buyer)

		require.NoError(t, err)
		assert.Equal(t, purchase.ID, got.ID)
		assert.Len(t, tickets, 2)
	})

	t.Run("admin sees any purchase", func(t *testing.T) {
		got, _, err := svc.GetPurchase(context.Background(), purchase.ID, admin)

		require.NoError(t, err)
		assert.Equal(t, purchase.ID, got.ID)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		_, _, err := svc.GetPurchase(context.Background(), purchase.ID, stranger)

		assert.ErrorIs(t, err, service.ErrNotOwner)
	})

	t.Run("unknown purchase is not found", func(t *testing.T) {
		_, _, err := svc.GetPurchase(context.Background(), 9999, admin)

		assert.ErrorIs(t, err, service.ErrPurchaseNotFound)
	})
}

func TestPurchaseService_ExpireOverduePurchases(t *testing.T) {
	store := newFakeStore()
	raffle := activeRaffle(store, 100, 5000)
	svc := newPurchaseService(store)

	fresh, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{1}, domain.User{ID: 7})
	require.NoError(t, err)
	overdue, err := svc.ReserveTickets(context.Background(), raffle.ID, []int{2}, domain.User{ID: 8})
	require.NoError(t, err)

	store.mu.Lock()
	p := store.purchases[overdue.ID]
	p.ExpiresAt = time.Now().Add(-time.Minute)
	store.purchases[overdue.ID] = p
	store.mu.Unlock()

	expired, err := svc.ExpireOverduePurchases(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	got, err := store.FindPurchaseByID(context.Background(), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusExpired, got.Status)

	kept, err := store.FindPurchaseByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPendingPayment, kept.Status)

	// Only the overdue number was released.
	taken, err := store.FindUnavailableTickets(context.Background(), raffle.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, 1, taken[0].Number)
}
