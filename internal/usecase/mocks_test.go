package usecase

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/grocerybot/assistant/internal/domain"
	"github.com/grocerybot/assistant/internal/logging"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

var mockProductID = regexp.MustCompile(`/ip/(?:[^/?#]+/)?(\d+)`)

// MockCatalogStore is an in-memory implementation of domain.CatalogStore
type MockCatalogStore struct {
	items     map[string]domain.CatalogItem
	order     []string
	purchases []domain.Purchase

	findError   error
	createError error
	updateError error
	recordError error
	statsError  error

	updates []domain.CatalogItemUpdate
}

func NewMockCatalogStore(items ...domain.CatalogItem) *MockCatalogStore {
	m := &MockCatalogStore{items: make(map[string]domain.CatalogItem)}
	for _, item := range items {
		m.put(item)
	}
	return m
}

func (m *MockCatalogStore) put(item domain.CatalogItem) {
	if _, ok := m.items[item.ID]; !ok {
		m.order = append(m.order, item.ID)
	}
	m.items[item.ID] = item
}

func (m *MockCatalogStore) FindByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

func (m *MockCatalogStore) FindAllActiveByPriority(ctx context.Context) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, id := range m.order {
		if item := m.items[id]; item.IsActive() {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NormalizedPriority() < out[j].NormalizedPriority()
	})
	return out, nil
}

func (m *MockCatalogStore) Create(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if m.createError != nil {
		return nil, m.createError
	}
	m.put(item)
	return &item, nil
}

func (m *MockCatalogStore) Update(ctx context.Context, id string, update domain.CatalogItemUpdate) error {
	if m.updateError != nil {
		return m.updateError
	}
	item, ok := m.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	m.updates = append(m.updates, update)
	m.items[id] = applyItemUpdate(item, update)
	return nil
}

func (m *MockCatalogStore) RecordPurchase(ctx context.Context, purchase domain.Purchase) error {
	if m.recordError != nil {
		return m.recordError
	}
	m.purchases = append(m.purchases, purchase)
	return nil
}

func (m *MockCatalogStore) PurchaseStats(ctx context.Context, id string) (*domain.PurchaseStats, error) {
	if m.statsError != nil {
		return nil, m.statsError
	}
	stats := &domain.PurchaseStats{ProductID: id}
	for _, p := range m.purchases {
		if p.ProductID != id {
			continue
		}
		stats.PurchaseCount++
		if stats.LastPurchased == nil || p.Date.After(*stats.LastPurchased) {
			d := p.Date
			stats.LastPurchased = &d
		}
	}
	return stats, nil
}

func (m *MockCatalogStore) ExtractProductID(url string) (string, bool) {
	match := mockProductID.FindStringSubmatch(url)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// MockListSource is an in-memory implementation of domain.ListSource that counts saves
type MockListSource struct {
	items     []domain.ShoppingListItem
	saved     [][]domain.ShoppingListItem
	loadError error
	saveError error
}

func NewMockListSource(items ...domain.ShoppingListItem) *MockListSource {
	return &MockListSource{items: items}
}

func (m *MockListSource) LoadList(ctx context.Context) ([]domain.ShoppingListItem, error) {
	if m.loadError != nil {
		return nil, m.loadError
	}
	return append([]domain.ShoppingListItem(nil), m.items...), nil
}

func (m *MockListSource) SaveList(ctx context.Context, items []domain.ShoppingListItem) error {
	m.saved = append(m.saved, items)
	return m.saveError
}

func (m *MockListSource) lastSaved() []domain.ShoppingListItem {
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

// scriptStep is one scripted answer to an AwaitResponse call
type scriptStep struct {
	resp domain.Response
	err  error
}

func reply(r domain.Response) scriptStep { return scriptStep{resp: r} }
func failWith(err error) scriptStep { return scriptStep{err: err} }
func ack() scriptStep { return reply(domain.StatusResponse{Value: domain.StatusContinue}) }
func ready() scriptStep { return reply(domain.StatusResponse{Value: domain.StatusReady}) }
func status(s domain.Status) scriptStep { return reply(domain.StatusResponse{Value: s}) }

type sentCommand struct {
	cmd     domain.Command
	notify  bool
	timeout time.Duration
}

// MockDriver is a scripted domain.DriverChannel. Every wait consumes the next
// step; an exhausted script ends the session as a quit.
type MockDriver struct {
	mu     sync.Mutex
	steps  []scriptStep
	sent   []sentCommand
	resets int
}

func NewMockDriver(steps ...scriptStep) *MockDriver {
	return &MockDriver{steps: steps}
}

func (d *MockDriver) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	return nil
}

func (d *MockDriver) Send(ctx context.Context, cmd domain.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentCommand{cmd: cmd})
	return nil
}

func (d *MockDriver) Notify(ctx context.Context, cmd domain.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentCommand{cmd: cmd, notify: true})
	return nil
}

func (d *MockDriver) AwaitResponse(ctx context.Context, timeout time.Duration) (domain.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.steps) == 0 {
		return nil, domain.ErrSessionQuit
	}
	step := d.steps[0]
	d.steps = d.steps[1:]
	return step.resp, step.err
}

func (d *MockDriver) SendAndAwait(ctx context.Context, cmd domain.Command, timeout time.Duration) (domain.Response, error) {
	d.mu.Lock()
	d.sent = append(d.sent, sentCommand{cmd: cmd, timeout: timeout})
	d.mu.Unlock()
	return d.AwaitResponse(ctx, timeout)
}

func (d *MockDriver) remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.steps)
}

// actions lists the actions sent, in order
func (d *MockDriver) actions() []domain.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Action, 0, len(d.sent))
	for _, s := range d.sent {
		out = append(out, s.cmd.Action)
	}
	return out
}

// find returns the first command sent with action
func (d *MockDriver) find(action domain.Action) (sentCommand, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sent {
		if s.cmd.Action == action {
			return s, true
		}
	}
	return sentCommand{}, false
}

type countingObserver struct {
	outcomes map[ItemOutcome]int
	runs     []RunSummary
}

func newCountingObserver() *countingObserver {
	return &countingObserver{outcomes: make(map[ItemOutcome]int)}
}

func (o *countingObserver) ItemFinished(outcome ItemOutcome) { o.outcomes[outcome]++ }
func (o *countingObserver) RunFinished(summary RunSummary) { o.runs = append(o.runs, summary) }

func newTestCatalogService(store domain.CatalogStore, cache domain.CacheRepository) *CatalogService {
	return NewCatalogService(store, cache, newTestMatcher(), CatalogServiceConfig{
		Logger: logging.NewNop(),
		Now: func() time.Time {
			return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		},
	})
}

func newTestSession(store domain.CatalogStore, lists domain.ListSource, driver domain.DriverChannel, config SessionConfig) *SessionService {
	matcher := newTestMatcher()
	catalog := NewCatalogService(store, NewMockCacheRepository(), matcher, CatalogServiceConfig{Logger: logging.NewNop()})
	config.Logger = logging.NewNop()
	return NewSessionService(driver, lists, catalog, matcher, config)
}

func listItem(name string, qty int) domain.ShoppingListItem {
	return domain.ShoppingListItem{Name: name, QuantityRequested: qty, ResolutionState: domain.StateUnresolved}
}

func findItem(items []domain.ShoppingListItem, name string) (domain.ShoppingListItem, bool) {
	for _, item := range items {
		if domain.NormalizeName(item.Name) == domain.NormalizeName(name) {
			return item, true
		}
	}
	return domain.ShoppingListItem{}, false
}
