package testing

import (
	"context"
	"sync"

	"github.com/aristath/assetflow/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockMarketData is a testify mock of domain.MarketDataSupplier
type MockMarketData struct {
	mock.Mock
}

// FetchQuote records the call and returns the configured quote
func (m *MockMarketData) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(domain.Quote), args.Error(1)
}

// FetchFundamentals records the call and returns the configured fundamentals
func (m *MockMarketData) FetchFundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(domain.Fundamentals), args.Error(1)
}

// MockDividends is a testify mock of domain.DividendSupplier
type MockDividends struct {
	mock.Mock
}

// FetchDividends records the call and returns the configured dividends
func (m *MockDividends) FetchDividends(ctx context.Context, symbol string) ([]domain.Dividend, error) {
	args := m.Called(ctx, symbol)
	divs, _ := args.Get(0).([]domain.Dividend)
	return divs, args.Error(1)
}

// MockFXRates is a fixed-table domain.FXRateSupplier
type MockFXRates struct {
	mu    sync.RWMutex
	rates map[domain.Currency]float64
	err   error
	calls int
}

// NewMockFXRates creates an FX supplier answering from rates
func NewMockFXRates(rates map[domain.Currency]float64) *MockFXRates {
	if rates == nil {
		rates = map[domain.Currency]float64{}
	}
	return &MockFXRates{rates: rates}
}

// SetError makes every call fail with err
func (m *MockFXRates) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Rate was called
func (m *MockFXRates) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Rate returns the configured rate, or domain.ErrNoMarketData when unknown
func (m *MockFXRates) Rate(_ context.Context, currency domain.Currency) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	rate, ok := m.rates[currency]
	if !ok {
		return 0, domain.ErrNoMarketData
	}
	return rate, nil
}

// EmittedEvent is one event captured by MockEventEmitter
type EmittedEvent struct {
	Type string
	Data map[string]interface{}
}

// MockEventEmitter records emitted events
type MockEventEmitter struct {
	mu     sync.Mutex
	events []EmittedEvent
}

// NewMockEventEmitter creates an empty recorder
func NewMockEventEmitter() *MockEventEmitter {
	return &MockEventEmitter{}
}

// Emit records an event
func (m *MockEventEmitter) Emit(eventType string, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, EmittedEvent{Type: eventType, Data: data})
}

// Events returns a copy of the recorded events
func (m *MockEventEmitter) Events() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmittedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Types returns the recorded event types in order
func (m *MockEventEmitter) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
