package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/schedkeeper/internal/common"
	"github.com/dmitrijs2005/schedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/schedkeeper/internal/dbx"
	"github.com/dmitrijs2005/schedkeeper/internal/logging"
	"github.com/dmitrijs2005/schedkeeper/internal/server/config"
	"github.com/dmitrijs2005/schedkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/schedkeeper/internal/server/models"
	"github.com/dmitrijs2005/schedkeeper/internal/server/notify"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/keys"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/schedkeeper/internal/server/repositories/schedules"
)

var errBoom = errors.New("boom")

// fakeStore is an in-memory stand-in for the database. Repositories bound
// to the pool or to a transaction share the same state.
type fakeStore struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	roles     map[string]models.Role
	keys      map[string]*models.KeyPair
	messages  []*models.Message
	audit     []*models.AuditLog
	schedules map[string]int
	seq       int
	base      time.Time
	fail      map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[string]*models.Account{},
		roles:     map[string]models.Role{},
		keys:      map[string]*models.KeyPair{},
		schedules: map[string]int{},
		base:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		fail:      map[string]error{},
	}
}

// tick returns strictly increasing creation times.
func (s *fakeStore) tick() time.Time {
	s.seq++
	return s.base.Add(time.Duration(s.seq) * time.Second)
}

func (s *fakeStore) failure(name string) error { return s.fail[name] }

func (s *fakeStore) account(id string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *fakeStore) byUsername(username string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audit))
	for _, l := range s.audit {
		out = append(out, l.Action)
	}
	return out
}

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error   { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository           { return &fakeAccounts{m.s} }
func (m *fakeRepoManager) Roles(dbx.DBTX) roles.Repository                 { return &fakeRoles{m.s} }
func (m *fakeRepoManager) Keys(dbx.DBTX) keys.Repository                   { return &fakeKeys{m.s} }
func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository           { return &fakeMessages{m.s} }
func (m *fakeRepoManager) AuditLogs(dbx.DBTX) auditlogs.Repository         { return &fakeAudit{m.s} }
func (m *fakeRepoManager) Schedules(dbx.DBTX) schedules.Repository         { return &fakeSchedules{m.s} }

// --- accounts ---

type fakeAccounts struct{ s *fakeStore }

func (r *fakeAccounts) withRole(a *models.Account) *models.Account {
	cp := *a
	cp.Role = models.RoleUser
	if role, ok := r.s.roles[a.ID]; ok {
		cp.Role = role
	}
	return &cp
}

func (r *fakeAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	if err := r.s.failure("accounts.Create"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if existing.Username == a.Username {
			return nil, common.ErrUsernameTaken
		}
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("acc-%d", len(r.s.accounts)+1)
	}
	a.CreatedAt = r.s.tick()
	cp := *a
	r.s.accounts[a.ID] = &cp
	return a, nil
}

func (r *fakeAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if match(a) {
			return r.withRole(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return a.ID == id })
}

func (r *fakeAccounts) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	if err := r.s.failure("accounts.GetByUsername"); err != nil {
		return nil, err
	}
	return r.find(func(a *models.Account) bool { return a.Username == username })
}

func (r *fakeAccounts) GetByEncryptedEmail(_ context.Context, enc []byte) (*models.Account, error) {
	return r.find(func(a *models.Account) bool { return len(enc) > 0 && bytes.Equal(a.EncryptedEmail, enc) })
}

func (r *fakeAccounts) List(context.Context) ([]*models.Account, error) {
	if err := r.s.failure("accounts.List"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, r.withRole(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeAccounts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

// RecordFailedLogin mirrors the conditional UPDATE of the Postgres repository.
func (r *fakeAccounts) RecordFailedLogin(_ context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || (a.LockoutUntil != nil && a.LockoutUntil.After(now)) {
		return nil, common.ErrorNotFound
	}
	n := a.FailedLoginCount + 1
	if n >= threshold {
		until := now.Add(lockFor)
		a.FailedLoginCount = 0
		a.LockoutUntil = &until
		return &until, nil
	}
	a.FailedLoginCount = n
	a.LockoutUntil = nil
	return nil, nil
}

func (r *fakeAccounts) update(id string, fn func(a *models.Account)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(a)
	return nil
}

func (r *fakeAccounts) ResetLoginState(_ context.Context, id string) error {
	return r.update(id, func(a *models.Account) {
		a.FailedLoginCount = 0
		a.LockoutUntil = nil
	})
}

func (r *fakeAccounts) SetLockout(_ context.Context, id string, until time.Time) error {
	return r.update(id, func(a *models.Account) { a.LockoutUntil = &until })
}

func (r *fakeAccounts) SetResetToken(_ context.Context, id, token string, expiry time.Time) error {
	return r.update(id, func(a *models.Account) {
		a.ResetToken = &token
		a.ResetTokenExpiry = &expiry
	})
}

func (r *fakeAccounts) ConsumeResetToken(_ context.Context, enc []byte, token string, now time.Time, hash string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if !bytes.Equal(a.EncryptedEmail, enc) || a.ResetToken == nil || *a.ResetToken != token {
			continue
		}
		if a.ResetTokenExpiry == nil || !a.ResetTokenExpiry.After(now) {
			continue
		}
		a.PasswordHash = hash
		a.ResetToken = nil
		a.ResetTokenExpiry = nil
		a.FailedLoginCount = 0
		a.LockoutUntil = nil
		return a.ID, nil
	}
	return "", common.ErrInvalidOrExpiredToken
}

// --- roles ---

type fakeRoles struct{ s *fakeStore }

func (r *fakeRoles) Assign(_ context.Context, accountID string, role models.Role) error {
	if err := r.s.failure("roles.Assign"); err != nil {
		return err
	}
	if !role.Valid() {
		return common.ErrorNotFound
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.roles[accountID] = role
	return nil
}

func (r *fakeRoles) DeleteForAccount(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.roles, accountID)
	return nil
}

// --- keys ---

type fakeKeys struct{ s *fakeStore }

func (r *fakeKeys) Create(_ context.Context, kp *models.KeyPair) error {
	if err := r.s.failure("keys.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *kp
	r.s.keys[kp.AccountID] = &cp
	return nil
}

func (r *fakeKeys) GetByAccountID(_ context.Context, accountID string) (*models.KeyPair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kp, ok := r.s.keys[accountID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *kp
	return &cp, nil
}

func (r *fakeKeys) GetByUsername(ctx context.Context, username string) (*models.KeyPair, error) {
	a := r.s.byUsername(username)
	if a == nil {
		return nil, common.ErrorNotFound
	}
	return r.GetByAccountID(ctx, a.ID)
}

func (r *fakeKeys) DeleteForAccount(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.keys, accountID)
	return nil
}

// --- messages ---

type fakeMessages struct{ s *fakeStore }

func (r *fakeMessages) Create(_ context.Context, m *models.Message) error {
	if err := r.s.failure("messages.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == "" {
		m.ID = fmt.Sprintf("msg-%d", len(r.s.messages)+1)
	}
	m.CreatedAt = r.s.tick()
	cp := *m
	r.s.messages = append(r.s.messages, &cp)
	return nil
}

func (r *fakeMessages) ListForReceiver(_ context.Context, receiverID string) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, m := range r.s.messages {
		if m.ReceiverID != receiverID {
			continue
		}
		sender, ok := r.s.accounts[m.SenderID]
		if !ok {
			continue
		}
		cp := *m
		cp.SenderUsername = sender.Username
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessages) DeleteForAccount(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.messages[:0]
	for _, m := range r.s.messages {
		if m.SenderID != accountID && m.ReceiverID != accountID {
			kept = append(kept, m)
		}
	}
	r.s.messages = kept
	return nil
}

// --- audit logs ---

type fakeAudit struct{ s *fakeStore }

func (r *fakeAudit) Record(_ context.Context, e *models.AuditLog) error {
	if err := r.s.failure("audit.Record"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = int64(len(r.s.audit) + 1)
	e.CreatedAt = r.s.tick()
	cp := *e
	r.s.audit = append(r.s.audit, &cp)
	return nil
}

func (r *fakeAudit) ListRecent(_ context.Context, limit int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AuditLog
	for i := len(r.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.s.audit[i]
		cp.Username = nil
		if cp.AccountID != nil {
			if a, ok := r.s.accounts[*cp.AccountID]; ok {
				name := a.Username
				cp.Username = &name
			}
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAudit) Anonymize(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.audit {
		if l.AccountID != nil && *l.AccountID == accountID {
			l.AccountID = nil
		}
	}
	return nil
}

// --- schedules ---

type fakeSchedules struct{ s *fakeStore }

func (r *fakeSchedules) DeleteForAccount(_ context.Context, accountID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.schedules, accountID)
	return nil
}

// --- clock, notifier, key pairs ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notify.ResetNotice
	err     error
}

func (n *fakeNotifier) PublishReset(_ context.Context, notice notify.ResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *fakeNotifier) Close() error { return nil }

var (
	pairsOnce sync.Once
	pairs     [3]*cryptox.KeyPair
	pairsErr  error
)

// keyPairSource hands out pre-generated RSA pairs in turn so tests do not
// pay for a fresh 2048-bit key on every registration.
func keyPairSource(t *testing.T) func() (*cryptox.KeyPair, error) {
	t.Helper()
	pairsOnce.Do(func() {
		for i := range pairs {
			if pairs[i], pairsErr = cryptox.GenerateKeyPair(); pairsErr != nil {
				return
			}
		}
	})
	require.NoError(t, pairsErr)

	var next int
	return func() (*cryptox.KeyPair, error) {
		kp := pairs[next%len(pairs)]
		next++
		return kp, nil
	}
}

const testMasterKey = "E546C8DF278CD5931069B522E695D4F2"

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *fakeStore
	rm       *fakeRepoManager
	db       *sql.DB
	cfg      *config.Config
	keys     *cryptox.MasterKeyStore
	clock    *fakeClock
	notifier *fakeNotifier

	accounts *AccountService
	resets   *ResetService
	messages *MessageService
	admin    *AdminService
}

func newTestConfig() *config.Config {
	return &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		MaxFailedLogins:             3,
		LockoutDuration:             10 * time.Minute,
		ResetTokenTTL:               30 * time.Minute,
	}
}

func openTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newTestEnv wires every service against one fake store. db only provides
// real BEGIN/COMMIT/ROLLBACK; cfgFn may adjust the config first.
func newTestEnv(t *testing.T, db *sql.DB, cfgFn ...func(*config.Config)) *testEnv {
	t.Helper()

	if db == nil {
		db = openTxDB(t)
	}
	cfg := newTestConfig()
	for _, fn := range cfgFn {
		fn(cfg)
	}

	store := newFakeStore()
	rm := &fakeRepoManager{s: store}
	keyStore, err := cryptox.NewMasterKeyStore([]byte(testMasterKey))
	require.NoError(t, err)

	clock := &fakeClock{now: testNow}
	notifier := &fakeNotifier{}
	log := logging.Nop{}
	met := metrics.New()

	env := &testEnv{
		store:    store,
		rm:       rm,
		db:       db,
		cfg:      cfg,
		keys:     keyStore,
		clock:    clock,
		notifier: notifier,
		accounts: NewAccountService(db, rm, cfg, keyStore, log, met),
		resets:   NewResetService(db, rm, cfg, keyStore, notifier, log, met),
		messages: NewMessageService(db, rm, keyStore, log, met),
		admin:    NewAdminService(db, rm, cfg, keyStore, log, met),
	}

	env.accounts.now = clock.Now
	env.accounts.bcryptCost = 4
	env.accounts.generateKeyPair = keyPairSource(t)
	env.resets.now = clock.Now
	env.resets.bcryptCost = 4
	env.admin.now = clock.Now

	return env
}

// register creates an account and returns its id.
func (e *testEnv) register(t *testing.T, username, email, password string) string {
	t.Helper()
	id, err := e.accounts.Register(context.Background(), username, email, password)
	require.NoError(t, err)
	return id
}
