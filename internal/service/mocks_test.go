package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/ratelimit"
	"github.com/alwalid54321/su-st-sub001/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// mockUserRepository реализует UserRepository и AdminUserRepository.
type mockUserRepository struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.User
	lookups int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{byID: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserRepository) add(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.byID[u.ID] = u
	return u
}

func (m *mockUserRepository) findByEmail(email string) *models.User {
	for _, u := range m.byID {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *mockUserRepository) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrUserExists
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if u := m.findByEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

func (m *mockUserRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email || strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	return m.mutate(id, func(u *models.User) { u.EmailVerified = true })
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return m.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (m *mockUserRepository) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.mutate(id, func(u *models.User) { u.LastLoginAt = &at })
}

func (m *mockUserRepository) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return m.mutate(id, func(u *models.User) { u.IsActive = active })
}

func (m *mockUserRepository) List(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *mockUserRepository) Update(_ context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	var updated models.User
	err := m.mutate(id, func(u *models.User) {
		if upd.Plan != nil {
			u.Plan = *upd.Plan
		}
		if upd.IsActive != nil {
			u.IsActive = *upd.IsActive
		}
		if upd.IsStaff != nil {
			u.IsStaff = *upd.IsStaff
		}
		if upd.FirstName != nil {
			u.FirstName = upd.FirstName
		}
		if upd.LastName != nil {
			u.LastName = upd.LastName
		}
		updated = *u
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (m *mockUserRepository) mutate(id uuid.UUID, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *mockUserRepository) get(id uuid.UUID) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

// mockCodeRepository повторяет поведение VerificationRepository: выдача гасит прежние живые коды.
type mockCodeRepository struct {
	mu    sync.Mutex
	codes []*models.VerificationCode
	now   func() time.Time
}

func newMockCodeRepository(now func() time.Time) *mockCodeRepository {
	return &mockCodeRepository{now: now}
}

func (m *mockCodeRepository) Create(_ context.Context, code *models.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidate(code.Email, code.Purpose)
	code.ID = uuid.New()
	code.CreatedAt = m.now()
	cp := *code
	m.codes = append(m.codes, &cp)
	return nil
}

func (m *mockCodeRepository) FindLive(_ context.Context, email string, purpose models.CodePurpose, otp string, now time.Time) (*models.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := m.codes[i]
		if c.Email == email && c.Purpose == purpose && c.Code == otp && c.Live(now) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrCodeNotFound
}

func (m *mockCodeRepository) Consume(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.ID == id {
			if c.IsUsed {
				return false, nil
			}
			c.IsUsed = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCodeRepository) InvalidateActive(_ context.Context, email string, purpose models.CodePurpose) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidate(email, purpose), nil
}

func (m *mockCodeRepository) invalidate(email string, purpose models.CodePurpose) int64 {
	var n int64
	for _, c := range m.codes {
		if c.Email == email && c.Purpose == purpose && !c.IsUsed {
			c.IsUsed = true
			n++
		}
	}
	return n
}

func (m *mockCodeRepository) live(email string, purpose models.CodePurpose) []models.VerificationCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VerificationCode
	for _, c := range m.codes {
		if c.Email == email && c.Purpose == purpose && c.Live(m.now()) {
			out = append(out, *c)
		}
	}
	return out
}

func (m *mockCodeRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

// slowCodeRepository задерживает поиск кода, чтобы параллельные запросы пересекались.
type slowCodeRepository struct {
	*mockCodeRepository
	delay   time.Duration
	lookups atomic.Int64
}

func (r *slowCodeRepository) FindLive(ctx context.Context, email string, purpose models.CodePurpose, otp string, now time.Time) (*models.VerificationCode, error) {
	r.lookups.Add(1)
	time.Sleep(r.delay)
	return r.mockCodeRepository.FindLive(ctx, email, purpose, otp, now)
}

type sentMail struct {
	kind    string
	to      string
	otp     string
	subject string
	body    string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockMailer) record(mail sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *mockMailer) SendVerificationEmail(_ context.Context, email, otp string) error {
	return m.record(sentMail{kind: "verification", to: email, otp: otp})
}

func (m *mockMailer) SendPasswordResetEmail(_ context.Context, email, otp string) error {
	return m.record(sentMail{kind: "password_reset", to: email, otp: otp})
}

func (m *mockMailer) SendLoginCodeEmail(_ context.Context, email, otp string) error {
	return m.record(sentMail{kind: "login", to: email, otp: otp})
}

func (m *mockMailer) SendEmailNotification(_ context.Context, email, subject, body string) error {
	return m.record(sentMail{kind: "notification", to: email, subject: subject, body: body})
}

func (m *mockMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type countingObserver struct {
	mu       sync.Mutex
	issued   map[string]int
	redeemed map[string]int
	alerts   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{issued: map[string]int{}, redeemed: map[string]int{}}
}

func (o *countingObserver) CodeIssued(p string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.issued[p]++
}

func (o *countingObserver) CodeRedeemed(p string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.redeemed[p]++
}

func (o *countingObserver) AlertTriggered() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alerts++
}

type mockAlertRepository struct {
	alerts    map[uuid.UUID]*models.PriceAlert
	active    []models.ActiveAlert
	triggered map[uuid.UUID]time.Time
	markErr   error
}

func newMockAlertRepository() *mockAlertRepository {
	return &mockAlertRepository{
		alerts:    make(map[uuid.UUID]*models.PriceAlert),
		triggered: make(map[uuid.UUID]time.Time),
	}
}

func (m *mockAlertRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]models.PriceAlert, error) {
	var out []models.PriceAlert
	for _, a := range m.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAlertRepository) Create(_ context.Context, alert *models.PriceAlert) error {
	if alert.MarketDataID == 404 {
		return repository.ErrMarketNotFound
	}
	alert.ID = uuid.New()
	alert.IsActive = true
	m.alerts[alert.ID] = alert
	return nil
}

func (m *mockAlertRepository) Delete(_ context.Context, id, userID uuid.UUID) error {
	a, ok := m.alerts[id]
	if !ok || a.UserID != userID {
		return repository.ErrAlertNotFound
	}
	delete(m.alerts, id)
	return nil
}

func (m *mockAlertRepository) ListActive(context.Context) ([]models.ActiveAlert, error) {
	return m.active, nil
}

func (m *mockAlertRepository) MarkTriggered(_ context.Context, id uuid.UUID, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.triggered[id] = at
	return nil
}

type mockPushRepository struct {
	subs    map[string]models.PushSubscription
	listErr error
}

func newMockPushRepository() *mockPushRepository {
	return &mockPushRepository{subs: make(map[string]models.PushSubscription)}
}

func (m *mockPushRepository) Upsert(_ context.Context, sub *models.PushSubscription) error {
	if existing, ok := m.subs[sub.Endpoint]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = uuid.New()
	}
	m.subs[sub.Endpoint] = *sub
	return nil
}

func (m *mockPushRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

func (m *mockPushRepository) Delete(_ context.Context, userID uuid.UUID, endpoint string) error {
	if s, ok := m.subs[endpoint]; ok && s.UserID == userID {
		delete(m.subs, endpoint)
	}
	return nil
}

type mockNotifier struct {
	sent   map[string][]byte
	errFor map[string]error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: map[string][]byte{}, errFor: map[string]error{}}
}

func (m *mockNotifier) SendPushNotification(_ context.Context, sub models.PushSubscription, payload []byte) error {
	if err := m.errFor[sub.Endpoint]; err != nil {
		return err
	}
	m.sent[sub.Endpoint] = payload
	return nil
}

var errSMTPDown = errors.New("smtp: 421 service not available")

// testEnv собирает сервисы поверх in-memory зависимостей.
type testEnv struct {
	clock        *fakeClock
	users        *mockUserRepository
	codes        *mockCodeRepository
	mailer       *mockMailer
	store        *ratelimit.MemoryStore
	tracker      *ratelimit.Tracker
	policies     ratelimit.Policies
	tokens       *TokenManager
	hasher       *PasswordHasher
	observer     *countingObserver
	verification *VerificationService
	auth         *AuthService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		clock:    newFakeClock(),
		users:    newMockUserRepository(),
		mailer:   &mockMailer{},
		store:    ratelimit.NewMemoryStore(),
		policies: ratelimit.DefaultPolicies(),
		hasher:   NewPasswordHasher(4),
		observer: newCountingObserver(),
	}
	env.codes = newMockCodeRepository(env.clock.Now)
	env.tracker = ratelimit.NewTracker(env.store, ratelimit.WithClock(env.clock.Now))
	env.tokens = NewTokenManager("service-test-secret-service-test-secret", time.Hour).WithClock(env.clock.Now)
	env.verification = NewVerificationService(env.users, env.codes, env.mailer, env.tracker, env.policies, env.tokens, env.hasher,
		WithCodeObserver(env.observer))
	env.auth = NewAuthService(env.users, env.verification, env.tracker, env.policies, env.tokens, env.hasher)
	return env
}

const testPassword = "Sud4Stock!pass"

func (e *testEnv) addUser(email string, verified, active bool) *models.User {
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		panic(err)
	}
	return e.users.add(&models.User{
		Email:         email,
		Username:      strings.Split(email, "@")[0],
		PasswordHash:  hash,
		EmailVerified: verified,
		IsActive:      active,
		Plan:          models.PlanFree,
	})
}

func (e *testEnv) attempts(key string) int {
	rec, ok, _ := e.store.Get(context.Background(), ratelimit.Normalize(key))
	if !ok {
		return 0
	}
	return rec.Count
}
