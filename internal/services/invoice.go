package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"bookstore_back_end/internal/config"
	"bookstore_back_end/internal/models"
	"bookstore_back_end/internal/repository"
)

const invoiceURLTTL = 15 * time.Minute

// PDFRenderer transforme un document HTML en PDF
type PDFRenderer interface {
	Render(ctx context.Context, htmlDoc string) ([]byte, error)
}

// ChromeRenderer imprime la page via un Chrome headless (chromedp)
type ChromeRenderer struct {
	Timeout time.Duration
}

func (r ChromeRenderer) Render(ctx context.Context, htmlDoc string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, htmlDoc).Do(ctx)
		}),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// Invoice : URL présignée si archivée, sinon contenu brut
type Invoice struct {
	OrderNumber string `json:"order_number"`
	Format      string `json:"format"` // pdf | html
	URL         string `json:"url,omitempty"`
	Content     []byte `json:"-"`
}

func (i *Invoice) ContentType() string {
	if i.Format == "pdf" {
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

type InvoiceService struct {
	store      repository.Store
	qr         config.QRConfig
	memoPrefix string
	renderer   PDFRenderer // nil = facture HTML
	objects    ObjectStore // nil = pas d'archivage
}

func NewInvoiceService(store repository.Store, qr config.QRConfig, memoPrefix string, renderer PDFRenderer, objects ObjectStore) *InvoiceService {
	return &InvoiceService{store: store, qr: qr, memoPrefix: memoPrefix, renderer: renderer, objects: objects}
}

func (s *InvoiceService) Generate(ctx context.Context, orderID uuid.UUID, userID string, isAdmin bool) (*Invoice, error) {
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "Commande introuvable")
	}
	if !isAdmin && o.UserID != userID {
		return nil, notFound(repository.ErrNotFound, "Commande introuvable")
	}

	qrImg, err := s.transferQR(o)
	if err != nil {
		return nil, internal(err)
	}
	doc := invoiceHTML(o, qrImg, s.memoPrefix+o.OrderNumber)

	inv := &Invoice{OrderNumber: o.OrderNumber, Format: "html", Content: []byte(doc)}
	if s.renderer != nil {
		pdf, err := s.renderer.Render(ctx, doc)
		if err != nil {
			log.Printf("⚠️ Rendu PDF échoué pour %s, facture HTML: %v", o.OrderNumber, err)
		} else {
			inv.Format = "pdf"
			inv.Content = pdf
		}
	}

	if s.objects == nil {
		return inv, nil
	}
	key := fmt.Sprintf("invoices/%s.%s", o.OrderNumber, inv.Format)
	if err := s.objects.Put(ctx, key, inv.Content, inv.ContentType()); err != nil {
		log.Printf("⚠️ Archivage MinIO échoué pour %s: %v", key, err)
		return inv, nil
	}
	u, err := s.objects.PresignedURL(ctx, key, invoiceURLTTL)
	if err != nil {
		log.Printf("⚠️ URL présignée indisponible pour %s: %v", key, err)
		return inv, nil
	}
	log.Printf("🪣 Facture archivée: %s", key)
	inv.URL = u
	return inv, nil
}

// transferQR encode les coordonnées de virement en PNG base64 prêt pour <img src>
func (s *InvoiceService) transferQR(o *models.Order) (string, error) {
	payload := fmt.Sprintf("Banque: %s\nCompte: %s\nBénéficiaire: %s\nMontant: %s\nContenu: %s",
		s.qr.BankCode, s.qr.AccountNo, s.qr.AccountName, o.Total.StringFixed(0), s.memoPrefix+o.OrderNumber)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func invoiceHTML(o *models.Order, qrImg, memo string) string {
	rows := ""
	for _, it := range o.Items {
		rows += fmt.Sprintf(`
			<tr><td>%s</td><td>%d</td><td>%s</td><td>%s</td></tr>`,
			html.EscapeString(it.Title), it.Quantity, formatVND(it.UnitPrice), formatVND(it.LineTotal()))
	}
	a := o.ShippingAddress

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<title>Facture %s</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; color: #222; }
		table { width: 100%%; border-collapse: collapse; margin: 20px 0; }
		th, td { padding: 8px; border: 1px solid #ddd; text-align: left; }
		.totals td { border: none; text-align: right; }
	</style>
</head>
<body>
	<h1>Facture %s</h1>
	<p>Date : %s<br>Statut : %s</p>
	<p><strong>%s</strong><br>%s<br>%s, %s, %s, %s</p>
	<table>
		<thead><tr><th>Livre</th><th>Quantité</th><th>Prix unitaire</th><th>Total</th></tr></thead>
		<tbody>%s</tbody>
	</table>
	<table class="totals">
		<tr><td>Sous-total : %s</td></tr>
		<tr><td>Remise : -%s</td></tr>
		<tr><td>Livraison : %s</td></tr>
		<tr><td><strong>Total : %s</strong></td></tr>
	</table>
	<p>Virement : contenu <strong>%s</strong></p>
	<img src="%s" alt="QR virement" width="180">
</body>
</html>`,
		o.OrderNumber, o.OrderNumber, o.CreatedAt.Format("02/01/2006"), o.Status,
		html.EscapeString(a.Recipient), html.EscapeString(a.Phone), html.EscapeString(a.Line1),
		html.EscapeString(a.Ward), html.EscapeString(a.District), html.EscapeString(a.City),
		rows, formatVND(o.Subtotal), formatVND(o.Discount), formatVND(o.ShippingFee), formatVND(o.Total),
		html.EscapeString(memo), qrImg)
}
