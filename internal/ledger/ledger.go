package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/store"
)

// Account is a read-only snapshot of the signed-in user's ledger state.
// Callers receive copies; only Store methods mutate the live record.
type Account struct {
	Identity           string     `json:"identity"`
	Email              string     `json:"email"`
	Credits            int64      `json:"credits"`
	SubscriptionActive bool       `json:"subscription_active"`
	NextRewardAt       *time.Time `json:"next_reward_at,omitempty"`
}

type session struct {
	SignedIn bool   `json:"signed_in"`
	Identity string `json:"identity"`
}

// Store owns the per-identity credit ledger. All mutations flow through
// its methods under a single lock; every mutation outside a restore
// window writes the full snapshot back to the KV layer.
type Store struct {
	mu        sync.Mutex
	kv        store.KV
	logger    *slog.Logger
	signedIn  bool
	restoring bool
	current   Account
}

// New constructs a ledger store over the provided KV backend.
func New(kv store.KV, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logging.NewComponentLogger(logger, "ledger"),
	}
}

// SignIn resolves the effective email (explicit hint, else previously
// cached, else a synthesized placeholder), rehydrates any cached account
// snapshot for the identity, and marks the session signed in.
func (s *Store) SignIn(ctx context.Context, identity, emailHint string) (Account, error) {
	if identity == "" {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "sign_in", "identity is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cached Account
	found, err := store.GetJSON(ctx, s.kv, store.AccountKey(identity), &cached)
	if err != nil {
		return Account{}, fmt.Errorf("load account snapshot: %w", err)
	}

	email := emailHint
	if email == "" && found {
		email = cached.Email
	}
	if email == "" {
		email = placeholderEmail(identity)
	}

	account := Account{Identity: identity, Email: email}
	if found {
		account.Credits = cached.Credits
		account.SubscriptionActive = cached.SubscriptionActive
		account.NextRewardAt = cached.NextRewardAt
	}

	s.current = account
	s.signedIn = true

	if err := s.persistLocked(ctx); err != nil {
		return Account{}, err
	}
	s.logger.Info("signed in",
		logging.String(logging.FieldIdentity, identity),
		logging.Int64("credits", account.Credits))
	return s.current, nil
}

// SignOut flushes the in-memory account into the per-identity cache and
// clears the session back to signed-out defaults.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return nil
	}
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, store.CurrentIdentityKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("signed out", logging.String(logging.FieldIdentity, s.current.Identity))
	s.current = Account{}
	s.signedIn = false
	return nil
}

// Restore rehydrates the last active identity at launch. A missing or
// unreadable session record leaves the store signed out; this is not an
// error. Restore never writes back the snapshots it just loaded.
func (s *Store) Restore(ctx context.Context) (Account, bool, error) {
	s.mu.Lock()
	var sess session
	found, err := store.GetJSON(ctx, s.kv, store.CurrentIdentityKey, &sess)
	if err != nil {
		s.mu.Unlock()
		return Account{}, false, fmt.Errorf("load session: %w", err)
	}
	if !found || !sess.SignedIn || sess.Identity == "" {
		s.mu.Unlock()
		return Account{}, false, nil
	}
	s.restoring = true
	s.mu.Unlock()

	account, err := s.SignIn(ctx, sess.Identity, "")

	s.mu.Lock()
	s.restoring = false
	s.mu.Unlock()

	if err != nil {
		return Account{}, false, err
	}
	return account, true, nil
}

// DeleteAccount removes every persisted record for the signed-in
// identity and clears the session.
func (s *Store) DeleteAccount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return services.Wrap(services.ErrValidation, "ledger", "delete_account", "sign in required", nil)
	}
	identity := s.current.Identity
	keys := []string{
		store.AccountKey(identity),
		store.TransactionsKey(identity),
		store.PendingJobKey(identity),
		store.LastResultKey(identity),
		store.CurrentIdentityKey,
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	s.logger.Info("account deleted", logging.String(logging.FieldIdentity, identity))
	s.current = Account{}
	s.signedIn = false
	return nil
}

// AddCredits increments the balance and persists the snapshot.
func (s *Store) AddCredits(ctx context.Context, amount int64) (Account, error) {
	if amount < 0 {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "add_credits", "amount must be non-negative", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "add_credits", "sign in required", nil)
	}
	s.current.Credits += amount
	if err := s.persistLocked(ctx); err != nil {
		return Account{}, err
	}
	s.logger.Info("credits added",
		logging.String(logging.FieldIdentity, s.current.Identity),
		logging.Int64("amount", amount),
		logging.Int64("credits", s.current.Credits))
	return s.current, nil
}

// DebitCredits decrements the balance, clamping at zero, and persists.
func (s *Store) DebitCredits(ctx context.Context, amount int64) (Account, error) {
	if amount < 0 {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "debit_credits", "amount must be non-negative", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "debit_credits", "sign in required", nil)
	}
	s.current.Credits -= amount
	if s.current.Credits < 0 {
		s.current.Credits = 0
	}
	if err := s.persistLocked(ctx); err != nil {
		return Account{}, err
	}
	s.logger.Info("credits debited",
		logging.String(logging.FieldIdentity, s.current.Identity),
		logging.Int64("amount", amount),
		logging.Int64("credits", s.current.Credits))
	return s.current, nil
}

// SetSubscriptionActive records the verified entitlement state.
func (s *Store) SetSubscriptionActive(ctx context.Context, active bool) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "set_subscription", "sign in required", nil)
	}
	s.current.SubscriptionActive = active
	if err := s.persistLocked(ctx); err != nil {
		return Account{}, err
	}
	return s.current, nil
}

// SetNextReward records when the next subscription reward falls due.
func (s *Store) SetNextReward(ctx context.Context, at time.Time) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return Account{}, services.Wrap(services.ErrValidation, "ledger", "set_next_reward", "sign in required", nil)
	}
	utc := at.UTC()
	s.current.NextRewardAt = &utc
	if err := s.persistLocked(ctx); err != nil {
		return Account{}, err
	}
	return s.current, nil
}

// Snapshot returns a copy of the current account and whether a session
// is active. Safe for concurrent display reads.
func (s *Store) Snapshot() (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.signedIn
}

// persistLocked writes the account snapshot and session flags. Callers
// must hold s.mu. Writes are suppressed during a restore window so the
// restore does not re-persist the state it just read.
func (s *Store) persistLocked(ctx context.Context) error {
	if s.restoring {
		return nil
	}
	if err := store.PutJSON(ctx, s.kv, store.AccountKey(s.current.Identity), s.current); err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	sess := session{SignedIn: s.signedIn, Identity: s.current.Identity}
	if err := store.PutJSON(ctx, s.kv, store.CurrentIdentityKey, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func placeholderEmail(identity string) string {
	prefix := identity
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "user-" + prefix + "@reel.invalid"
}
