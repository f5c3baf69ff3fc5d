package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classe une erreur pour la traduction HTTP uniforme
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindBadRequest
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindRetryable
)

// GenericMessage est le seul message renvoyé au client pour une erreur système
const GenericMessage = "Erreur interne du serveur"

type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string // détail par champ (validation)
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func FieldError(field, message string) *Error {
	return Validation(message, map[string]string{field: message})
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Retryable signale une panne transitoire (timeout d'un service externe) : le client peut réessayer
func Retryable(message string, err error) *Error {
	return &Error{Kind: KindRetryable, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: GenericMessage, Err: err}
}

// InsufficientStock nomme le livre et les deux quantités
func InsufficientStock(bookID, title string, requested, available int) *Error {
	e := Validation("Stock insuffisant", map[string]string{
		"quantity": fmt.Sprintf("%d demandé(s), %d disponible(s)", requested, available),
	})
	e.Details = map[string]any{
		"book_id":   bookID,
		"title":     title,
		"requested": requested,
		"available": available,
	}
	return e
}

// WithDetails ajoute des informations structurées à la réponse
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// As retourne l'erreur applicative portée par err, si elle existe
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
