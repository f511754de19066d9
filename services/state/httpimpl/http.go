// Package httpimpl serves the read side of the state service over HTTP, next to the health
// and prometheus endpoints.
package httpimpl

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/services/state"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTP struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	client    state.ClientI
	e         *echo.Echo
	startTime time.Time
}

func New(logger ulogger.Logger, tSettings *settings.Settings, client state.ClientI) *HTTP {
	initPrometheusMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(metricsMiddleware)

	h := &HTTP{
		logger:    logger.New("state_http"),
		settings:  tSettings,
		client:    client,
		e:         e,
		startTime: time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("State service is alive. Uptime: %s\n", time.Since(h.startTime)))
	})

	e.GET("/health", func(c echo.Context) error {
		status, details, err := client.Health(c.Request().Context(), false)
		if err != nil {
			return c.String(http.StatusInternalServerError, details)
		}

		return c.String(status, details)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")

	api.POST("/block", h.SubmitBlock)

	api.GET("/tip", h.GetTip)
	api.GET("/block_locator", h.GetBlockLocator)
	api.GET("/depth/:hash", h.GetDepth)
	api.GET("/block/:hash", h.GetBlock)
	api.GET("/tx/:hash", h.GetTransaction)
	api.GET("/utxo/:hash/:vout", h.GetUtxo)

	api.GET("/address/:address/balance", h.GetAddressBalance)
	api.GET("/address/:address/utxos", h.GetAddressUtxos)
	api.GET("/address/:address/txids", h.GetAddressTxIDs)

	return h
}

// ServeHTTP lets tests drive the routes without a listener.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.e.ServeHTTP(w, r)
}

// Start serves on addr until ctx is done.
func (h *HTTP) Start(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()

		h.logger.Infof("[State_http] service shutting down")

		if err := h.e.Shutdown(context.Background()); err != nil {
			h.logger.Errorf("[State_http] service shutdown error: %s", err)
		}
	}()

	h.logger.Infof("[State_http] listening on %s", addr)

	if err := h.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.NewServiceError("[State_http] failed to serve on %s", addr, err)
	}

	return nil
}
