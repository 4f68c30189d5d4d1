package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/payment"
)

type paymentApi struct {
	base     baseApi
	svc      payment.Service
	receipts payment.ReceiptRenderer
}

func registerPaymentAPI(v1 *echo.Group, g *guard, api *paymentApi) {
	payments := v1.Group("/payments", g.authenticated()...)
	payments.GET("", api.list, g.permit(access.Payments, access.List))
	payments.POST("", api.create, g.permit(access.Payments, access.Create))
	payments.GET("/:id", api.retrieve, g.permit(access.Payments, access.Read))
	payments.PUT("/:id", api.update, g.permit(access.Payments, access.Update))
	payments.PATCH("/:id/status", api.setStatus, g.permit(access.Payments, access.Toggle))
	payments.GET("/:id/receipt", api.receipt, g.permit(access.Payments, access.Read))
	payments.POST("/:id/receipt/mail", api.mailReceipt, g.permit(access.Payments, access.Update))

	reports := v1.Group("/reports", g.authenticated()...)
	reports.GET("/revenue", api.revenue, g.permit(access.Reports, access.Read))
}

func (api *paymentApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, payment.ListSchema)
	if err != nil {
		return err
	}
	payments, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing payments")
	}
	return api.base.listResult(ctx, payment.ListSchema, payments, total, params)
}

func (api *paymentApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data payment.NewPayment
	if err = api.base.bind(ctx, &data, "NewPayment"); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), caller.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding payment by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data payment.UpdatePayment
	if err = api.base.bind(ctx, &data, "UpdatePayment"); err != nil {
		return err
	}
	p, err := api.svc.Update(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "updating payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.SetActive(ctx.Request().Context(), id, active, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "setting payment status")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) receipt(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.Receipt(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "preparing receipt")
	}

	buf := new(bytes.Buffer)
	if err = api.receipts.Render(buf, rec); err != nil {
		return errors.Wrap(err, "rendering receipt")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="receipt-%d.pdf"`, id))
	return ctx.Blob(http.StatusOK, api.receipts.ContentType(), buf.Bytes())
}

func (api *paymentApi) mailReceipt(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	to, err := api.svc.MailReceipt(ctx.Request().Context(), id, getContextScope(ctx), api.receipts)
	if err != nil {
		return errors.Wrap(err, "mailing receipt")
	}
	return ctx.JSON(http.StatusAccepted, echo.Map{"to": to.Address})
}

func (api *paymentApi) revenue(ctx echo.Context) error {
	var filter payment.RevenueFilter
	if err := api.base.bind(ctx, &filter, "RevenueFilter"); err != nil {
		return err
	}
	report, err := api.svc.Revenue(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "computing revenue")
	}
	return ctx.JSON(http.StatusOK, report)
}
