package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lexpost/config"
	"lexpost/internal/authz"
	"lexpost/internal/database"
	"lexpost/internal/domain"
	"lexpost/internal/logger"
	"lexpost/internal/models"
	"lexpost/internal/repository"
	"lexpost/pkg/cloudinary"
	"lexpost/pkg/generator"
	"lexpost/pkg/payment"
)

const testWebhookSecret = "whsec_test"

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) last() domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type fakeGenerator struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, req generator.Request) (string, error)
	calls int
}

func (g *fakeGenerator) GenerateLetter(ctx context.Context, req generator.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.fn == nil {
		return "Dear " + req.RecipientName + ",\n\nPlease remedy the matter.", nil
	}
	return g.fn(ctx, req)
}

type fakeEmail struct {
	sent []EmailMessage
	err  error
}

func (e *fakeEmail) Send(_ context.Context, msg EmailMessage) error {
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, msg)
	return nil
}

type fakeStore struct {
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeStore) UploadDocument(_ context.Context, file io.Reader, folder, publicID string) (*cloudinary.UploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(file)
	f.uploaded = append(f.uploaded, publicID)
	return &cloudinary.UploadResult{
		URL:      "https://files.example.com/" + folder + "/" + publicID,
		PublicID: folder + "/" + publicID,
		Bytes:    int64(len(b)),
	}, nil
}

func (f *fakeStore) Delete(_ context.Context, publicID string) error {
	f.deleted = append(f.deleted, publicID)
	return nil
}

// fakeProvider behaves like the simulated provider unless a function field is set.
type fakeProvider struct {
	payment.SimulatedProvider
	checkoutFn func(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutResponse, error)
	cancelErr  error
	requests   []payment.CheckoutRequest
	cancelled  []string
}

func (p *fakeProvider) InitiateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutResponse, error) {
	p.requests = append(p.requests, req)
	if p.checkoutFn != nil {
		return p.checkoutFn(ctx, req)
	}
	return p.SimulatedProvider.InitiateCheckout(ctx, req)
}

func (p *fakeProvider) CancelSubscription(_ context.Context, externalID string) error {
	if p.cancelErr != nil {
		return p.cancelErr
	}
	p.cancelled = append(p.cancelled, externalID)
	return nil
}

type testEnv struct {
	db  *gorm.DB
	cfg *config.Config

	profileRepo *repository.ProfileRepository
	letterRepo  *repository.LetterRepository
	subRepo     *repository.SubscriptionRepository
	couponRepo  *repository.ReferralRepository
	settingRepo *repository.SettingRepository
	notifRepo   *repository.NotificationRepository

	events   *recordingPublisher
	gen      *fakeGenerator
	email    *fakeEmail
	store    *fakeStore
	provider *fakeProvider

	notifier *NotificationService
	referral *ReferralService
	billing  *BillingService
	letters  *LetterService
	profiles *ProfileService
	admin    *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return newTestEnvWithDB(t, db)
}

// newFileTestEnv runs against a sqlite file with a real connection pool, so
// concurrent callers overlap the way they do in production.
func newFileTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "lexpost.db") + "?_foreign_keys=on"
	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 10})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return newTestEnvWithDB(t, db)
}

func newTestEnvWithDB(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Payment.WebhookSecret = testWebhookSecret
	log := logger.Nop()

	e := &testEnv{
		db:          db,
		cfg:         cfg,
		profileRepo: repository.NewProfileRepository(db),
		letterRepo:  repository.NewLetterRepository(db),
		subRepo:     repository.NewSubscriptionRepository(db),
		couponRepo:  repository.NewReferralRepository(db),
		settingRepo: repository.NewSettingRepository(db),
		notifRepo:   repository.NewNotificationRepository(db),
		events:      &recordingPublisher{},
		gen:         &fakeGenerator{},
		email:       &fakeEmail{},
		store:       &fakeStore{},
		provider:    &fakeProvider{},
	}
	tx := repository.NewTxManager(db)
	az := authz.MustNew()

	e.notifier = NewNotificationService(e.notifRepo, e.events, log)
	e.referral = NewReferralService(tx, e.couponRepo, e.profileRepo, e.subRepo, e.settingRepo, e.notifier, cfg.Referral, log)
	e.billing = NewBillingService(tx, e.subRepo, e.profileRepo, e.referral, e.provider, az, e.notifier, e.events, cfg.Plans, cfg.Payment, log)
	e.letters = NewLetterService(LetterDeps{
		Tx:          tx,
		Letters:     e.letterRepo,
		Subs:        e.subRepo,
		Authz:       az,
		Generator:   e.gen,
		Renderer:    NewRenderer(),
		Email:       e.email,
		Notifier:    e.notifier,
		Events:      e.events,
		Attachments: e.store,
		Log:         log,
	}, LetterOptions{AttachmentFolder: "test"})
	e.profiles = NewProfileService(tx, e.profileRepo, e.subRepo, e.referral, e.events, log)
	e.admin = NewAdminService(repository.NewAdminRepository(db), e.settingRepo, e.referral, log)
	return e
}

func (e *testEnv) profile(t *testing.T, email string, role domain.Role) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, Role: role}
	require.NoError(t, e.profileRepo.Create(context.Background(), p))
	return p
}

// employee creates an employee with an issued coupon.
func (e *testEnv) employee(t *testing.T, email string) (*models.Profile, *models.ReferralCoupon) {
	t.Helper()
	p := e.profile(t, email, domain.RoleEmployee)
	c, err := e.referral.IssueCoupon(context.Background(), p.ID)
	require.NoError(t, err)
	return p, c
}

func (e *testEnv) reload(t *testing.T, id uint) *models.Profile {
	t.Helper()
	p, err := e.profileRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) coupon(t *testing.T, id uint) *models.ReferralCoupon {
	t.Helper()
	c, err := e.couponRepo.GetCoupon(context.Background(), id)
	require.NoError(t, err)
	return c
}

func actor(p *models.Profile) Actor {
	return Actor{ID: p.ID, Role: p.Role}
}

var errBoom = errors.New("boom")
