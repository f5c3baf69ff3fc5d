// Package services porte la logique métier : panier, tarification, commandes, paiements,
// expéditions, catalogue, commentaires, factures et notifications.
package services

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bookstore_back_end/internal/apperr"
	"bookstore_back_end/internal/repository"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomCode tire n caractères dans un alphabet sans caractères ambigus (0/O, 1/I)
func randomCode(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// orderNumber : ORD + yyMMddHHmmss + 4 caractères aléatoires
func orderNumber(now time.Time) (string, error) {
	suffix, err := randomCode(4)
	if err != nil {
		return "", err
	}
	return "ORD" + now.Format("060102150405") + suffix, nil
}

func trackingCode() (string, error) {
	suffix, err := randomCode(10)
	if err != nil {
		return "", err
	}
	return "BKS-" + suffix, nil
}

// formatVND : 280000 → "280.000 ₫"
func formatVND(d decimal.Decimal) string {
	s := d.Floor().StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + " ₫"
	if neg {
		out = "-" + out
	}
	return out
}

// notFound traduit repository.ErrNotFound en erreur applicative, le reste en erreur interne
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(message)
	}
	return internal(err)
}

// internal laisse passer les erreurs applicatives déjà typées
func internal(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(err)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
