package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/config"
)

type fakeRenderer struct {
	err error
}

func (r fakeRenderer) Render(_ context.Context, htmlDoc string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7 " + htmlDoc[:10]), nil
}

type fakeObjects struct {
	puts   map[string]string
	putErr error
}

func (f *fakeObjects) Put(_ context.Context, key string, _ []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[key] = contentType
	return nil
}

func (f *fakeObjects) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://minio.test/bookstore/" + key + "?ttl=" + ttl.String(), nil
}

var testQR = config.QRConfig{BankCode: "970436", AccountNo: "0011001234567", AccountName: "BOOKSTORE"}

func TestInvoiceHTMLWithoutRenderer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "Tôi thấy hoa vàng trên cỏ xanh", 110000, 5, 300)
	res := e.checkout(t, "u1", map[uuid.UUID]int{book.ID: 1}, defaultCheckout())

	svc := NewInvoiceService(e.store, testQR, "BKS", nil, nil)
	inv, err := svc.Generate(ctx, res.Order.ID, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "html", inv.Format)
	assert.Equal(t, "text/html; charset=utf-8", inv.ContentType())
	assert.Empty(t, inv.URL)

	doc := string(inv.Content)
	assert.Contains(t, doc, res.Order.OrderNumber)
	assert.Contains(t, doc, "BKS"+res.Order.OrderNumber)
	assert.Contains(t, doc, "140.000 ₫")
	assert.Contains(t, doc, "data:image/png;base64,")

	_, err = svc.Generate(ctx, res.Order.ID, "u2", false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.Generate(ctx, res.Order.ID, "admin", true)
	assert.NoError(t, err)
}

func TestInvoicePDFArchived(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "A", 100000, 5, 300)
	res := e.checkout(t, "u1", map[uuid.UUID]int{book.ID: 1}, defaultCheckout())

	objects := &fakeObjects{}
	svc := NewInvoiceService(e.store, testQR, "BKS", fakeRenderer{}, objects)
	inv, err := svc.Generate(ctx, res.Order.ID, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "pdf", inv.Format)
	assert.True(t, strings.HasPrefix(string(inv.Content), "%PDF"))

	key := "invoices/" + res.Order.OrderNumber + ".pdf"
	assert.Equal(t, "application/pdf", objects.puts[key])
	assert.Equal(t, "https://minio.test/bookstore/"+key+"?ttl=15m0s", inv.URL)
}

func TestInvoiceDegradesGracefully(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.addBook(t, "A", 100000, 5, 300)
	res := e.checkout(t, "u1", map[uuid.UUID]int{book.ID: 1}, defaultCheckout())

	objects := &fakeObjects{putErr: errors.New("bucket indisponible")}
	svc := NewInvoiceService(e.store, testQR, "BKS", fakeRenderer{err: errors.New("chrome absent")}, objects)
	inv, err := svc.Generate(ctx, res.Order.ID, "u1", false)
	require.NoError(t, err)
	assert.Equal(t, "html", inv.Format)
	assert.Empty(t, inv.URL)
	assert.NotEmpty(t, inv.Content)
}
