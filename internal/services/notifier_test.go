package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository/memory"
)

type panicSink struct{}

func (panicSink) Name() string { return "panic" }

func (panicSink) Handle(context.Context, Event) error { panic("boom") }

type failingSink struct{}

func (failingSink) Name() string { return "failing" }

func (failingSink) Handle(context.Context, Event) error { return errors.New("smtp down") }

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	body string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, htmlBody string, _ ...Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	m.body = htmlBody
	return nil
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func sampleOrder() models.Order {
	return models.Order{
		ID:           uuid.New(),
		OrderNumber:  "ORD260301120000ABCD",
		UserID:       "u1",
		ContactEmail: "u1@example.com",
		Status:       models.OrderPaid,
		Total:        dong(280000),
		Items: []models.OrderItem{
			{BookID: uuid.New(), Title: "Số đỏ <édition>", Quantity: 2, UnitPrice: dong(125000)},
		},
	}
}

func TestDispatcherIsolatesSinks(t *testing.T) {
	rec := &recordingSink{}
	d := NewDispatcher(panicSink{}, failingSink{}, rec)

	d.Dispatch(NewEvent(EventOrderPaid, sampleOrder()))
	d.Dispatch(NewEvent(EventOrderShipped, sampleOrder()))
	d.Wait()

	assert.ElementsMatch(t, []EventType{EventOrderPaid, EventOrderShipped}, rec.types())
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(NewEvent(EventOrderPaid, sampleOrder()))
		d.Wait()
	})
}

func TestEventMessages(t *testing.T) {
	o := sampleOrder()
	for _, typ := range []EventType{EventOrderCreated, EventOrderPaid, EventOrderShipped, EventOrderDelivered, EventOrderCancelled, EventPaymentFailed} {
		e := NewEvent(typ, o)
		assert.NotEmpty(t, e.Title(), typ)
		assert.Contains(t, e.Message(), o.OrderNumber, typ)
	}

	e := NewEvent(EventOrderCancelled, o)
	e.Reason = reasonExpired
	assert.Contains(t, e.Message(), reasonExpired)
	assert.Contains(t, NewEvent(EventOrderCreated, o).Message(), "280.000 ₫")
}

func TestEmailSink(t *testing.T) {
	m := &fakeMailer{}
	sink := NewEmailSink(m)
	o := sampleOrder()

	require.NoError(t, sink.Handle(context.Background(), NewEvent(EventOrderPaid, o)))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "u1@example.com|✅ Paiement confirmé - Bookstore", m.sent[0])
	assert.Contains(t, m.body, "Số đỏ &lt;édition&gt;")
	assert.Contains(t, m.body, "250.000 ₫")

	o.ContactEmail = ""
	require.NoError(t, sink.Handle(context.Background(), NewEvent(EventOrderPaid, o)))
	assert.Len(t, m.sent, 1, "pas d'adresse, pas d'envoi")
}

func TestPushSink(t *testing.T) {
	pub := &fakePublisher{}
	o := sampleOrder()

	require.NoError(t, NewPushSink(pub).Handle(context.Background(), NewEvent(EventOrderShipped, o)))
	msgs := pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "notifications:u1", msgs[0].channel)

	var got PushMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].payload), &got))
	assert.Equal(t, EventOrderShipped, got.Type)
	assert.Equal(t, o.ID, got.OrderID)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
	assert.Equal(t, "Paid", got.Status)
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	o := sampleOrder()

	require.NoError(t, NewKafkaSink(w).Handle(context.Background(), NewEvent(EventOrderPaid, o)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, o.OrderNumber, string(w.msgs[0].Key))

	var got struct {
		Type  EventType    `json:"type"`
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, EventOrderPaid, got.Type)
	assert.Equal(t, o.ID, got.Order.ID)
}

func TestInAppSinkAndNotificationService(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	o := sampleOrder()

	sink := NewInAppSink(store.Notifications())
	require.NoError(t, sink.Handle(ctx, NewEvent(EventOrderDelivered, o)))

	svc := NewNotificationService(store)
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(EventOrderDelivered), list[0].Type)
	assert.Equal(t, o.ID, *list[0].OrderID)

	err = svc.MarkRead(ctx, list[0].ID, "u2")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "notification d'un autre utilisateur")
	require.NoError(t, svc.MarkRead(ctx, list[0].ID, "u1"))

	o.UserID = ""
	assert.Error(t, sink.Handle(ctx, NewEvent(EventOrderDelivered, o)))
}
