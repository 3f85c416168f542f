package factory

import (
	"time"

	"github.com/mcoot/rublocks/internal/dependencies/mocks"
	"github.com/mcoot/rublocks/internal/storage/memory"
	"github.com/mcoot/rublocks/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDGenerator
}

// NewTestApp creates an in-memory App with a fixed clock and predictable ids
func NewTestApp(cfg Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDs := mocks.NewMockIDGenerator()

	logger := cfg.Logger
	if logger == nil {
		logger = testutil.NopLogger()
	}

	return &TestApp{
		App:       newWithDependencies(store, mockClock, mockIDs, cfg, logger),
		MockClock: mockClock,
		MockIDs:   mockIDs,
	}
}
