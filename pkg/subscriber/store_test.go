package subscriber

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	store.PutPlan(Plan{Name: "fibra-50", DownloadLimit: "50M", UploadLimit: "50M"})
	store.PutSubscriber(Subscriber{ID: "c-1", Username: "joao123", CredentialSecret: "s3cret", PlanRef: "fibra-50"})

	s, err := store.GetSubscriber(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "joao123", s.Username)
	assert.Equal(t, StateUnprovisioned, s.DeviceState)

	p, err := store.GetPlan(context.Background(), "fibra-50")
	require.NoError(t, err)
	assert.Equal(t, "50M", p.DownloadLimit)

	_, err = store.GetSubscriber(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListOverdue(t *testing.T) {
	store := NewMemoryStore()
	store.PutSubscriber(Subscriber{ID: "a", Username: "ana", BillingStatus: BillingStatus{OverdueDays: 10}})
	store.PutSubscriber(Subscriber{ID: "b", Username: "bia"})
	store.PutSubscriber(Subscriber{ID: "c", Username: "caio", BillingStatus: BillingStatus{OverdueDays: 2}})

	overdue, err := store.ListOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, "a", overdue[0].ID)
	assert.Equal(t, "c", overdue[1].ID)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordSync(t *testing.T) {
	fixed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	orig := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = orig }()

	store := NewMemoryStore()
	store.PutSubscriber(Subscriber{ID: "c-1", Username: "joao123"})

	require.NoError(t, store.RecordSync(context.Background(), "c-1", StateActive))
	s, err := store.GetSubscriber(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, StateActive, s.DeviceState)
	assert.Equal(t, fixed, s.LastSyncedAt)

	assert.ErrorIs(t, store.RecordSync(context.Background(), "ghost", StateBlocked), ErrNotFound)
}

func TestSubscriberValidate(t *testing.T) {
	assert.Error(t, Subscriber{}.Validate())
	assert.Error(t, Subscriber{ID: "c-1"}.Validate())
	assert.NoError(t, Subscriber{ID: "c-1", Username: "joao123"}.Validate())
}

func TestPlanValidate(t *testing.T) {
	assert.Error(t, Plan{}.Validate())
	assert.Error(t, Plan{Name: "p", DownloadLimit: "50M"}.Validate())
	assert.NoError(t, Plan{Name: "p", DownloadLimit: "50M", UploadLimit: "50M"}.Validate())
}

func TestLogValueRedactsSecret(t *testing.T) {
	s := Subscriber{ID: "c-1", Username: "joao123", CredentialSecret: "hunter2"}

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("provisioned", "subscriber", s)

	out := sb.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "joao123")
}

func TestBillingStatusString(t *testing.T) {
	assert.Equal(t, "CURRENT", BillingStatus{}.String())
	assert.Equal(t, "OVERDUE(7)", BillingStatus{OverdueDays: 7}.String())
}
