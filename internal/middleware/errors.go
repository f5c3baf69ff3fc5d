package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bookstore_back_end/internal/apperr"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName : les erreurs de validation nomment les champs comme le JSON du client
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

// ErrorHandler traduit la dernière erreur posée par c.Error en réponse JSON
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := Translate(c.Errors.Last().Err)

		if appErr.Kind == apperr.KindInternal {
			log.Printf("❌ %s %s: %v", c.Request.Method, c.Request.URL.Path, appErr.Err)
		}
		c.JSON(apperr.HTTPStatus(appErr.Kind), errorResponse{
			Error:     appErr.Message,
			Fields:    appErr.Fields,
			Details:   appErr.Details,
			Retryable: appErr.Kind == apperr.KindRetryable,
		})
	}
}

// Translate ramène toute erreur à une erreur applicative
func Translate(err error) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		if e.Kind == apperr.KindInternal {
			return &apperr.Error{Kind: apperr.KindInternal, Message: apperr.GenericMessage, Err: e.Err}
		}
		return e
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = describe(fe)
		}
		return apperr.Validation("Requête invalide", fields)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.BadRequest("Corps JSON invalide")
	case errors.As(err, &typeErr):
		return apperr.FieldError(typeErr.Field, "Type invalide")
	}
	return apperr.Internal(err)
}

// fieldPath retire le nom de la structure racine : "CheckoutRequest.shipping_address.phone" → "shipping_address.phone"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Champ requis"
	case "email":
		return "Adresse e-mail invalide"
	case "min":
		return "Valeur minimale : " + fe.Param()
	case "max":
		return "Valeur maximale : " + fe.Param()
	case "oneof":
		return "Valeurs acceptées : " + fe.Param()
	default:
		return "Valeur invalide (" + fe.Tag() + ")"
	}
}

// BindError : toute erreur de décodage non reconnue est une faute du client
func BindError(err error) *apperr.Error {
	e := Translate(err)
	if e.Kind == apperr.KindInternal {
		return apperr.BadRequest("Corps JSON invalide")
	}
	return e
}
