//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresContainer starts a disposable PostgreSQL server, applies the
// migrations and returns a connection manager pointing at it.
func setupPostgresContainer(t *testing.T) *ConnectionManager {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("basekeeper_test"),
		postgres.WithUsername("basekeeper"),
		postgres.WithPassword("basekeeper_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		// Fresh context: the test context may already be cancelled
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cm, err := NewConnectionManager(ConnectionConfig{
		Dialect:    DialectPostgres,
		PrimaryURL: connStr,
		MaxConns:   10,
		MinConns:   2,
		Timeout:    10 * time.Second,
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })

	require.NoError(t, RunMigrations(ctx, cm.Primary(), DialectPostgres, testLogger()))
	require.NoError(t, RunMigrations(ctx, cm.Primary(), DialectPostgres, testLogger()))
	return cm
}

func TestPostgresIntegration_ConfirmationsSerializePerTenant(t *testing.T) {
	cm := setupPostgresContainer(t)
	ctx := context.Background()
	store := NewStore(cm.Primary(), DialectPostgres)
	clock := &steppingClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	engine := billing.NewEngine(store, clock, testLogger(), nil)
	ledger := billing.NewLedger(store, engine, clock, testLogger(), nil)

	months := 1
	limit := 0
	first, err := ledger.Create(ctx, &billing.Payment{
		TenantID: "base-1",
		Type:     billing.PaymentTypeSubscription,
		Amount:   25,
		Metadata: billing.PaymentMetadata{Months: &months, NewMemberLimit: &limit},
	})
	require.NoError(t, err)
	_, err = engine.Confirm(ctx, first.ID, "treasurer")
	require.NoError(t, err)

	const additions = 20
	var wg sync.WaitGroup
	for i := 0; i < additions; i++ {
		count := 1
		p, err := ledger.Create(ctx, &billing.Payment{
			ID:       fmt.Sprintf("add-%d", i),
			TenantID: "base-1",
			Type:     billing.PaymentTypeMemberAddition,
			Metadata: billing.PaymentMetadata{MemberCount: &count},
		})
		require.NoError(t, err)

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := engine.Confirm(ctx, id, "treasurer")
			assert.NoError(t, err)
		}(p.ID)
	}
	wg.Wait()

	sub, err := engine.Subscription(ctx, "base-1")
	require.NoError(t, err)
	assert.Equal(t, additions, sub.MemberLimit)

	require.NoError(t, ledger.Delete(ctx, first.ID))
	sub, err = engine.Subscription(ctx, "base-1")
	require.NoError(t, err)
	assert.True(t, sub.EndDate.Equal(sub.StartDate), "reversal removes the paid month")
}

func TestPostgresIntegration_Admission(t *testing.T) {
	cm := setupPostgresContainer(t)
	ctx := context.Background()
	store := NewStore(cm.Primary(), DialectPostgres)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Subscriptions().SaveSubscription(ctx, &billing.Subscription{
		TenantID:    "base-1",
		Plan:        billing.PlanMonthly,
		Status:      billing.SubscriptionStatusActive,
		MemberLimit: 4,
		StartDate:   now,
		EndDate:     now.AddDate(0, 1, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	admission := billing.NewAdmissionController(store, billing.FixedClock(now), testLogger(), nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := admission.AdmitMember(ctx, &members.Member{TenantID: "base-1", Name: fmt.Sprintf("member-%d", i)}); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, admitted)
	count, err := store.Members().CountApprovedMembers(ctx, "base-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
