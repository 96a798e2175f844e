package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-booking/internal/reservation"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator wraps v; a nil v gets a fresh validator.
func NewValidator(v *validator.Validate) *Validator {
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Validator{v: v}
}

// Validate runs the struct tags of i and reports failures as InvalidArgument.
func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return reservation.Errorf(reservation.InvalidArgument, "%s failed %q validation", fe.Field(), fe.Tag())
		}
		return reservation.Errorf(reservation.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// bind decodes the request body into dst and runs the echo validator when
// one is registered.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return reservation.Errorf(reservation.InvalidArgument, "invalid request body")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(dst); err != nil {
			return err
		}
	}
	return nil
}

// statusOf maps a failure kind to its HTTP status.
func statusOf(k reservation.Kind) int {
	switch k {
	case reservation.NotFound:
		return http.StatusNotFound
	case reservation.InvalidArgument:
		return http.StatusBadRequest
	case reservation.SeatsExhausted, reservation.SeatTaken, reservation.ConflictingSchedule:
		return http.StatusConflict
	case reservation.TransientConflict, reservation.Canceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"error": ..., "kind": ...}.  Internal details are
// logged and never returned to the client.
func fail(c echo.Context, log *zap.Logger, err error) error {
	kind := reservation.KindOf(err)
	status := statusOf(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		msg = "internal error"
	}
	return c.JSON(status, map[string]string{"error": msg, "kind": kind.String()})
}

func created(c echo.Context, what, id string) error {
	return c.JSON(http.StatusCreated, map[string]string{
		"message":     what + " created",
		"generatedId": id,
	})
}

func done(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}
