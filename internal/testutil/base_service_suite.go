package testutil

import (
	"context"
	"time"

	"github.com/invoicely/invoicely/internal/cache"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	"github.com/invoicely/invoicely/internal/domain/user"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/invoicely/invoicely/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	InvoiceRepo invoice.Repository
	PaymentRepo payment.Repository
	ClientRepo  client.Repository
	UserRepo    user.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	locks     *RowLocks
	db        *InMemoryTxClient
	publisher *InMemoryEventPublisher
	email     *MockEmailSender
	cache     cache.Cache
	sentry    *sentry.Service
	logger    *logger.Logger
	config    *config.Configuration
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.config = testConfig()
	s.setupContext()
	s.setupStores()
	s.now = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func testConfig() *config.Configuration {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelError
	cfg.Ledger.RetryInitialInterval = time.Millisecond
	cfg.Ledger.TxTimeout = 2 * time.Second
	cfg.Invoice.SweepOnList = false
	cfg.Invoice.PublicBaseURL = "https://invoices.test"
	cfg.Sentry.Enabled = false
	return cfg
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.locks = NewRowLocks()
	clients := NewInMemoryClientStore()

	s.stores = Stores{
		InvoiceRepo: NewInMemoryInvoiceStore(s.locks, clients),
		PaymentRepo: NewInMemoryPaymentStore(),
		ClientRepo:  clients,
		UserRepo:    NewInMemoryUserStore(),
	}

	s.db = NewInMemoryTxClient(s.logger)
	s.publisher = NewInMemoryEventPublisher()
	s.email = NewMockEmailSender(s.config.Invoice.PublicBaseURL)
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
	s.sentry = sentry.NewSentryService(s.config, s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.ClientRepo.(*InMemoryClientStore).Clear()
	s.stores.UserRepo.(*InMemoryUserStore).Clear()
	s.publisher.Clear()
	s.email.Clear()
	s.cache.Flush(context.Background())
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration. Tests may change it before
// building their services.
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the recording event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetEmailSender returns the capturing email sender
func (s *BaseServiceTestSuite) GetEmailSender() *MockEmailSender {
	return s.email
}

// GetDB returns the in-memory transaction client
func (s *BaseServiceTestSuite) GetDB() *InMemoryTxClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the fixed test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// SetNow moves the fixed test time
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
}

// GetClock returns a clock reading the suite time, so SetNow applies to
// services already built
func (s *BaseServiceTestSuite) GetClock() types.Clock {
	return func() time.Time {
		return s.now
	}
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
