package api

import (
	"errors"
	"net/http"

	"dataview/internal/query"
	"dataview/internal/records"

	"github.com/gin-gonic/gin"
)

// writeError переводит ошибки движка в HTTP-статусы.
func writeError(c *gin.Context, err error) {
	var (
		nf  *query.NotFoundError
		uo  *query.UnsupportedOperatorError
		ii  *query.InvalidIdentifierError
		iq  *query.InvalidQueryError
		bad *badRequestError
	)
	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &uo), errors.As(err, &ii), errors.As(err, &iq), errors.As(err, &bad),
		errors.Is(err, records.ErrNotNumeric), errors.Is(err, records.ErrUnknownAggregate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": err.Error()})
	}
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }
