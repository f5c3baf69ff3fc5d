package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bookstore_back_end/internal/config"
)

// ErrUnavailable : la passerelle n'a pas répondu à temps ou a renvoyé une erreur serveur.
// L'appelant peut réessayer.
var ErrUnavailable = errors.New("passerelle de paiement indisponible")

// QRProvider génère le QR de virement bancaire d'une commande
type QRProvider interface {
	GenerateQR(ctx context.Context, amount int64, memo string) (string, error)
}

// QRClient interroge le service d'image QR (API « quicklink » type VietQR)
type QRClient struct {
	cfg    config.QRConfig
	client *http.Client
}

func NewQRClient(cfg config.QRConfig) *QRClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QRClient{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// ImageURL construit l'URL de l'image sans appel réseau
func (q *QRClient) ImageURL(amount int64, memo string) string {
	v := url.Values{}
	v.Set("amount", strconv.FormatInt(amount, 10))
	v.Set("addInfo", memo)
	if q.cfg.AccountName != "" {
		v.Set("accountName", q.cfg.AccountName)
	}
	return fmt.Sprintf("%s/%s-%s-%s.png?%s", q.cfg.BaseURL, q.cfg.BankCode, q.cfg.AccountNo, q.cfg.Template, v.Encode())
}

// GenerateQR vérifie que l'image est servie puis renvoie son URL
func (q *QRClient) GenerateQR(ctx context.Context, amount int64, memo string) (string, error) {
	imageURL := q.ImageURL(amount, memo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	res, err := q.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	switch {
	case res.StatusCode >= 500:
		return "", fmt.Errorf("%w: statut %d", ErrUnavailable, res.StatusCode)
	case res.StatusCode >= 400:
		return "", fmt.Errorf("service QR: requête refusée (statut %d)", res.StatusCode)
	}
	return imageURL, nil
}
