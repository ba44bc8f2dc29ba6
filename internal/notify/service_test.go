package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kafkax "github.com/brisaerp/order-engine/internal/kafka"
	"github.com/brisaerp/order-engine/internal/orders"
)

type fakeDir struct {
	users map[string][]string // permission -> user ids
	err   error
	calls int
}

func (d *fakeDir) UsersWithPermission(ctx context.Context, tenant, permission string) ([]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.users[permission], nil
}

type fakeSink struct {
	rows []Notification
	err  error
}

func (s *fakeSink) InsertNotification(ctx context.Context, n Notification) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, n)
	return nil
}

func notificationMessage(t *testing.T, ev Event) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      "e1",
		EventType:    orders.EventNotification,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		TenantID:     ev.TenantID,
		Payload:      kafkax.MustMarshal(ev),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func newService(dir *fakeDir, sink *fakeSink) *Service {
	return &Service{
		Resolver: &Resolver{Dir: dir, Log: zap.NewNop()},
		Sink:     sink,
		Log:      zap.NewNop(),
	}
}

func TestHandleEventFansOutPerUser(t *testing.T) {
	dir := &fakeDir{users: map[string][]string{PermStockManage: {"u1", "u2"}}}
	sink := &fakeSink{}
	svc := newService(dir, sink)

	ev := Event{
		TenantID:   "t1",
		Permission: PermStockManage,
		Title:      "Low stock",
		Body:       "Product p1 is at 1 (minimum 2)",
		Severity:   SeverityWarning,
		Priority:   1,
	}
	require.NoError(t, svc.HandleEvent(context.Background(), notificationMessage(t, ev)))

	require.Len(t, sink.rows, 2)
	assert.ElementsMatch(t, []string{"u1", "u2"}, []string{sink.rows[0].UserID, sink.rows[1].UserID})
	for _, n := range sink.rows {
		assert.Equal(t, "t1", n.TenantID)
		assert.Equal(t, "Low stock", n.Title)
		assert.Equal(t, SeverityWarning, n.Severity)
		assert.NotEmpty(t, n.ID)
	}
}

func TestHandleEventPoisonMessageCommits(t *testing.T) {
	svc := newService(&fakeDir{}, &fakeSink{})
	err := svc.HandleEvent(context.Background(), kafkago.Message{Value: []byte("not json")})
	require.NoError(t, err, "undecodable messages are committed, retrying cannot fix them")
}

func TestHandleEventIgnoresOtherEventTypes(t *testing.T) {
	dir := &fakeDir{users: map[string][]string{PermOrdersView: {"u1"}}}
	sink := &fakeSink{}
	svc := newService(dir, sink)

	env := orders.Envelope{
		EventID:   "e2",
		EventType: orders.EventOrderCreated,
		Payload:   kafkax.MustMarshal(orders.OrderCreatedPayload{OrderID: "o1"}),
	}
	require.NoError(t, svc.HandleEvent(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)}))
	assert.Empty(t, sink.rows)
	assert.Zero(t, dir.calls)
}

func TestHandleEventResolverFailureRetries(t *testing.T) {
	dir := &fakeDir{err: errors.New("db down")}
	svc := newService(dir, &fakeSink{})

	err := svc.HandleEvent(context.Background(), notificationMessage(t, Event{
		TenantID: "t1", Permission: PermOrdersView, Title: "x",
	}))
	require.Error(t, err, "resolver failure leaves the offset uncommitted")
}

func TestHandleEventSinkFailureRetries(t *testing.T) {
	dir := &fakeDir{users: map[string][]string{PermOrdersView: {"u1"}}}
	sink := &fakeSink{err: errors.New("insert failed")}
	svc := newService(dir, sink)

	err := svc.HandleEvent(context.Background(), notificationMessage(t, Event{
		TenantID: "t1", Permission: PermOrdersView, Title: "x",
	}))
	require.Error(t, err)
}

func TestResolverFallsBackToDirectoryWithoutRedis(t *testing.T) {
	dir := &fakeDir{users: map[string][]string{PermCreditGate: {"u9"}}}
	r := &Resolver{Dir: dir, Log: zap.NewNop()}

	ids, err := r.Resolve(context.Background(), "t1", PermCreditGate)
	require.NoError(t, err)
	assert.Equal(t, []string{"u9"}, ids)
	assert.Equal(t, 1, dir.calls)

	// No cache layer configured: every resolve hits the directory.
	_, err = r.Resolve(context.Background(), "t1", PermCreditGate)
	require.NoError(t, err)
	assert.Equal(t, 2, dir.calls)
}
