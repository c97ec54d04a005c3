package loyalty

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/epicure/pkg/event"
	"github.com/google/uuid"
)

// MockCustomerRepo is an in-memory CustomerRepo with the same versioned
// compare-and-swap semantics as the MongoDB repository.
type MockCustomerRepo struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]*Customer
	saves     int

	CreateFunc func(ctx context.Context, c *Customer) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*Customer, error)
	SaveFunc   func(ctx context.Context, c *Customer) error
}

func NewMockCustomerRepo() *MockCustomerRepo {
	return &MockCustomerRepo{
		customers: make(map[uuid.UUID]*Customer),
	}
}

func (m *MockCustomerRepo) Create(ctx context.Context, c *Customer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.customers {
		if existing.Mobile == c.Mobile {
			return ErrMobileTaken
		}
	}
	m.customers[c.ID] = c.Clone()
	return nil
}

func (m *MockCustomerRepo) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (m *MockCustomerRepo) GetByMobile(ctx context.Context, mobile string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.Mobile == mobile {
			return c.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockCustomerRepo) List(ctx context.Context) ([]*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Customer
	for _, c := range m.customers {
		result = append(result, c.Clone())
	}
	return result, nil
}

func (m *MockCustomerRepo) Save(ctx context.Context, c *Customer) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.customers[c.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != c.Version {
		return ErrVersionConflict
	}
	c.Version++
	m.customers[c.ID] = c.Clone()
	m.saves++
	return nil
}

// Put stores c as is, bypassing version checks.
func (m *MockCustomerRepo) Put(c *Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c.Clone()
}

func (m *MockCustomerRepo) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// MockOTPRepo is a mock implementation of OTPRepo for testing
type MockOTPRepo struct {
	mu       sync.RWMutex
	sessions map[string]*OTPSession
}

func NewMockOTPRepo() *MockOTPRepo {
	return &MockOTPRepo{sessions: make(map[string]*OTPSession)}
}

func (m *MockOTPRepo) Put(ctx context.Context, s *OTPSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.Mobile] = &cp
	return nil
}

func (m *MockOTPRepo) Get(ctx context.Context, mobile string) (*OTPSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[mobile]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MockOTPRepo) Delete(ctx context.Context, mobile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, mobile)
	return nil
}

// MockAdminRepo is a mock implementation of AdminRepo for testing
type MockAdminRepo struct {
	mu     sync.RWMutex
	grants map[string]*AdminGrant
}

func NewMockAdminRepo() *MockAdminRepo {
	return &MockAdminRepo{grants: make(map[string]*AdminGrant)}
}

func (m *MockAdminRepo) Grant(ctx context.Context, g *AdminGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.grants[g.Mobile]; ok {
		return nil
	}
	cp := *g
	m.grants[g.Mobile] = &cp
	return nil
}

func (m *MockAdminRepo) Revoke(ctx context.Context, mobile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, mobile)
	return nil
}

func (m *MockAdminRepo) Get(ctx context.Context, mobile string) (*AdminGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grants[mobile]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *MockAdminRepo) List(ctx context.Context) ([]*AdminGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*AdminGrant
	for _, g := range m.grants {
		cp := *g
		result = append(result, &cp)
	}
	return result, nil
}

// MockBillRepo is a mock implementation of BillRepo for testing
type MockBillRepo struct {
	mu    sync.RWMutex
	bills map[string]*ScannedBill

	RegisterFunc func(ctx context.Context, b *ScannedBill) error
}

func NewMockBillRepo() *MockBillRepo {
	return &MockBillRepo{bills: make(map[string]*ScannedBill)}
}

func (m *MockBillRepo) Register(ctx context.Context, b *ScannedBill) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[b.BillHash]; ok {
		return ErrDuplicateBill
	}
	cp := *b
	m.bills[b.BillHash] = &cp
	return nil
}

func (m *MockBillRepo) Get(ctx context.Context, billHash string) (*ScannedBill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[billHash]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *MockBillRepo) Release(ctx context.Context, billHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bills, billHash)
	return nil
}

func (m *MockBillRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bills)
}

// MockPublisher records published messages.
type MockPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage

	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type publishedMessage struct {
	topic string
	data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{topic: topic, data: append([]byte{}, msg...)})
	return nil
}

// LedgerEvents decodes every message published on the ledger topic.
func (m *MockPublisher) LedgerEvents() []event.LedgerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.LedgerEvent
	for _, msg := range m.messages {
		if msg.topic != event.LedgerTopic {
			continue
		}
		var evt event.LedgerEvent
		if err := json.Unmarshal(msg.data, &evt); err == nil {
			out = append(out, evt)
		}
	}
	return out
}

// OTPEvents decodes every message published on the OTP topic.
func (m *MockPublisher) OTPEvents() []event.OTPRequestedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.OTPRequestedEvent
	for _, msg := range m.messages {
		if msg.topic != event.OTPTopic {
			continue
		}
		var evt event.OTPRequestedEvent
		if err := json.Unmarshal(msg.data, &evt); err == nil {
			out = append(out, evt)
		}
	}
	return out
}

// MockSubscriber is a mock implementation of events.Subscriber for testing
type MockSubscriber struct {
	mu       sync.Mutex
	handlers map[string]events.HandlerFunc

	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{handlers: make(map[string]events.HandlerFunc)}
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockSubscriber) Handler(topic string) events.HandlerFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

// MockStreamConsumer is a mock implementation of events.StreamConsumer for testing
type MockStreamConsumer struct {
	mu       sync.Mutex
	stored   []events.StreamMessage
	handler  events.HandlerFunc
	fetchErr error
}

func NewMockStreamConsumer(stored ...[]byte) *MockStreamConsumer {
	m := &MockStreamConsumer{}
	for i, data := range stored {
		m.stored = append(m.stored, events.StreamMessage{Data: data, Sequence: uint64(i + 1)})
	}
	return m
}

func (m *MockStreamConsumer) Fetch(ctx context.Context, limit int) ([]events.StreamMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if limit > len(m.stored) {
		limit = len(m.stored)
	}
	return append([]events.StreamMessage{}, m.stored[:limit]...), nil
}

func (m *MockStreamConsumer) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return nil
}

// Deliver hands msg to the live subscription.
func (m *MockStreamConsumer) Deliver(ctx context.Context, msg []byte) error {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, msg)
}

// MockSender records delivered messages.
type MockSender struct {
	mu   sync.Mutex
	sent map[string][]string

	SendFunc func(ctx context.Context, mobile, message string) error
}

func NewMockSender() *MockSender {
	return &MockSender{sent: make(map[string][]string)}
}

func (m *MockSender) Send(ctx context.Context, mobile, message string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, mobile, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[mobile] = append(m.sent[mobile], message)
	return nil
}

func (m *MockSender) Sent(mobile string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.sent[mobile]...)
}

// testEnv bundles a service with in-memory dependencies.
type testEnv struct {
	service   *Service
	customers *MockCustomerRepo
	otps      *MockOTPRepo
	admins    *MockAdminRepo
	bills     *MockBillRepo
	ledger    *MockPublisher
	otpPub    *MockPublisher
}

func newTestEnv() *testEnv {
	return newTestEnvWithSettings(DefaultSettings())
}

func newTestEnvWithSettings(settings Settings) *testEnv {
	env := &testEnv{
		customers: NewMockCustomerRepo(),
		otps:      NewMockOTPRepo(),
		admins:    NewMockAdminRepo(),
		bills:     NewMockBillRepo(),
		ledger:    NewMockPublisher(),
		otpPub:    NewMockPublisher(),
	}
	env.service = NewService(ServiceDeps{
		Repos: Repos{
			CustomerRepo: env.customers,
			OTPRepo:      env.otps,
			AdminRepo:    env.admins,
			BillRepo:     env.bills,
		},
		LedgerPublisher: env.ledger,
		OTPPublisher:    env.otpPub,
	}, settings, nil)
	return env
}

// addCustomer registers a customer directly in the repository.
func (e *testEnv) addCustomer(mobile, name string) *Customer {
	c := NewCustomer(mobile, name)
	e.customers.Put(c)
	return c
}
