package callback

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"kyc_link_gateway/types"

	"go.uber.org/zap/zaptest"
)

// Mock для IssuanceRepository
type mockIssuanceLookup struct {
	getFunc func(ctx context.Context, correlationID string) (*types.IssuanceRecord, error)
}

func (m *mockIssuanceLookup) GetByCorrelationID(ctx context.Context, correlationID string) (*types.IssuanceRecord, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, correlationID)
	}
	return nil, nil
}

func TestReconcile(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	issuedAgo := func(d time.Duration) func(ctx context.Context, id string) (*types.IssuanceRecord, error) {
		return func(ctx context.Context, id string) (*types.IssuanceRecord, error) {
			return &types.IssuanceRecord{CorrelationID: id, IssuedAt: now.Add(-d), ExpiresAt: now.Add(time.Hour)}, nil
		}
	}

	tests := []struct {
		name            string
		params          Params
		lookup          func(ctx context.Context, id string) (*types.IssuanceRecord, error)
		lenient         bool
		expectedOutcome Outcome
		expectIssuedAt  bool
	}{
		{
			name:            "cancelled_without_issuance_record",
			params:          Params{Status: "cancelled", UserID: "abc123"},
			expectedOutcome: OutcomeUnknown,
		},
		{
			name:            "successful_without_issuance_record",
			params:          Params{Status: "successful", UserID: "forged"},
			expectedOutcome: OutcomeUnknown,
		},
		{
			name:            "successful_within_threshold",
			params:          Params{Status: "successful", UserID: "abc123"},
			lookup:          issuedAgo(time.Minute),
			expectedOutcome: OutcomeSuccessful,
			expectIssuedAt:  true,
		},
		{
			name:            "success_alias",
			params:          Params{Status: "success", UserID: "abc123"},
			lookup:          issuedAgo(time.Minute),
			expectedOutcome: OutcomeSuccessful,
			expectIssuedAt:  true,
		},
		{
			name:            "cancelled_within_threshold",
			params:          Params{Status: "cancelled", UserID: "abc123"},
			lookup:          issuedAgo(2 * time.Minute),
			expectedOutcome: OutcomeCancelled,
			expectIssuedAt:  true,
		},
		{
			name:            "successful_after_threshold_is_expired",
			params:          Params{Status: "successful", UserID: "abc123"},
			lookup:          issuedAgo(6 * time.Minute),
			expectedOutcome: OutcomeExpired,
			expectIssuedAt:  true,
		},
		{
			name:            "exactly_at_threshold_is_not_expired",
			params:          Params{Status: "successful", UserID: "abc123"},
			lookup:          issuedAgo(5 * time.Minute),
			expectedOutcome: OutcomeSuccessful,
			expectIssuedAt:  true,
		},
		{
			name:            "claimed_timestamp_is_ignored",
			params:          Params{Status: "successful", UserID: "abc123", ClaimedTimestamp: "2000-01-01T00:00:00.000Z"},
			lookup:          issuedAgo(time.Minute),
			expectedOutcome: OutcomeSuccessful,
			expectIssuedAt:  true,
		},
		{
			name:            "unrecognized_status",
			params:          Params{Status: "pending", UserID: "abc123"},
			expectedOutcome: OutcomeUnknown,
		},
		{
			name:            "missing_everything",
			params:          Params{},
			expectedOutcome: OutcomeUnknown,
		},
		{
			name:            "lenient_mode_without_record",
			params:          Params{Status: "successful", UserID: "abc123"},
			lenient:         true,
			expectedOutcome: OutcomeSuccessful,
		},
		{
			name:            "lenient_mode_still_expires",
			params:          Params{Status: "successful", UserID: "abc123"},
			lookup:          issuedAgo(6 * time.Minute),
			lenient:         true,
			expectedOutcome: OutcomeExpired,
			expectIssuedAt:  true,
		},
		{
			name:   "store_error_is_unknown",
			params: Params{Status: "cancelled", UserID: "abc123"},
			lookup: func(ctx context.Context, id string) (*types.IssuanceRecord, error) {
				return nil, errors.New("redis: connection refused")
			},
			expectedOutcome: OutcomeUnknown,
		},
		{
			name:   "store_error_lenient_degrades_to_status",
			params: Params{Status: "cancelled", UserID: "abc123"},
			lookup: func(ctx context.Context, id string) (*types.IssuanceRecord, error) {
				return nil, errors.New("redis: connection refused")
			},
			lenient:         true,
			expectedOutcome: OutcomeCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconciler := NewReconciler(&mockIssuanceLookup{getFunc: tt.lookup}, 5*time.Minute, !tt.lenient, nil, zaptest.NewLogger(t))
			reconciler.now = func() time.Time { return now }

			event := reconciler.Reconcile(context.Background(), tt.params)

			if event.Outcome != tt.expectedOutcome {
				t.Errorf("expected outcome '%s', but got '%s'", tt.expectedOutcome, event.Outcome)
			}
			if event.CorrelationID != tt.params.UserID {
				t.Errorf("expected correlation id '%s', but got '%s'", tt.params.UserID, event.CorrelationID)
			}
			if event.RawStatus != tt.params.Status {
				t.Errorf("expected raw status '%s', but got '%s'", tt.params.Status, event.RawStatus)
			}
			if !event.ObservedAt.Equal(now) {
				t.Errorf("expected observed at %s, but got %s", now, event.ObservedAt)
			}
			if (event.IssuedAt != nil) != tt.expectIssuedAt {
				t.Errorf("expected issued at present=%t, but got %v", tt.expectIssuedAt, event.IssuedAt)
			}
		})
	}
}

func TestReconcileWithoutStore(t *testing.T) {
	tests := []struct {
		name            string
		requireIssuance bool
		expectedOutcome Outcome
	}{
		{name: "require_issuance", requireIssuance: true, expectedOutcome: OutcomeUnknown},
		{name: "lenient", requireIssuance: false, expectedOutcome: OutcomeCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconciler := NewReconciler(nil, 5*time.Minute, tt.requireIssuance, nil, zaptest.NewLogger(t))

			event := reconciler.Reconcile(context.Background(), Params{Status: "cancelled", UserID: "abc123"})
			if event.Outcome != tt.expectedOutcome {
				t.Errorf("expected outcome '%s', but got '%s'", tt.expectedOutcome, event.Outcome)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name             string
		event            Event
		expectedStatus   int
		expectedContains []string
	}{
		{
			name:             "cancelled",
			event:            Event{Outcome: OutcomeCancelled, RawStatus: "cancelled", CorrelationID: "abc123"},
			expectedStatus:   http.StatusOK,
			expectedContains: []string{`data-outcome="cancelled"`, "Verification Cancelled", "abc123"},
		},
		{
			name:             "successful",
			event:            Event{Outcome: OutcomeSuccessful, RawStatus: "successful", CorrelationID: "abc123"},
			expectedStatus:   http.StatusOK,
			expectedContains: []string{`data-outcome="successful"`, "Success!", "abc123"},
		},
		{
			name:             "expired",
			event:            Event{Outcome: OutcomeExpired, RawStatus: "successful", CorrelationID: "abc123"},
			expectedStatus:   http.StatusRequestTimeout,
			expectedContains: []string{`data-outcome="expired"`, "Session Expired"},
		},
		{
			name:             "unknown_with_raw_status",
			event:            Event{Outcome: OutcomeUnknown, RawStatus: "pending", CorrelationID: "abc123"},
			expectedStatus:   http.StatusOK,
			expectedContains: []string{`data-outcome="unknown"`, "Verification Status: pending"},
		},
		{
			name:             "unknown_without_fields",
			event:            Event{Outcome: OutcomeUnknown},
			expectedStatus:   http.StatusOK,
			expectedContains: []string{"Verification Status: Unknown"},
		},
		{
			name:             "escapes_correlation_id",
			event:            Event{Outcome: OutcomeCancelled, CorrelationID: "<script>alert(1)</script>"},
			expectedStatus:   http.StatusOK,
			expectedContains: []string{"&lt;script&gt;alert(1)&lt;/script&gt;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Render(tt.event)

			if status != tt.expectedStatus {
				t.Errorf("expected status %d, but got %d", tt.expectedStatus, status)
			}
			for _, fragment := range tt.expectedContains {
				if !strings.Contains(string(body), fragment) {
					t.Errorf("expected body to contain '%s', got:\n%s", fragment, body)
				}
			}
			if strings.Contains(string(body), "<script>") {
				t.Error("body must not contain unescaped script tags")
			}
		})
	}
}
