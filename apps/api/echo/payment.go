package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
)

type paymentApi struct {
	svc payment.Service
}

func registerPaymentAPI(g *echo.Group, auth echo.MiddlewareFunc, svc payment.Service) {
	api := paymentApi{svc: svc}

	pg := g.Group("/payments", auth)
	pg.GET("/rate", api.rate)
	pg.POST("/intent", api.createIntent)
}

// Handlers

func (api *paymentApi) rate(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.ExchangeRate(ctx.Request().Context()))
}

func (api *paymentApi) createIntent(ctx echo.Context) error {
	var data payment.IntentRequest
	if err := ctx.Bind(&data); err != nil {
		return core.NewValidationError(payment.ErrInvalidAmount)
	}

	intent, err := api.svc.CreateIntent(ctx.Request().Context(), data.Amount)
	if err != nil {
		return errors.Wrap(err, "creating payment intent")
	}
	return ctx.JSON(http.StatusOK, IntentResponse{ClientSecret: intent.ClientSecret})
}

type IntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}
