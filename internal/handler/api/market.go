package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	models "CrudeDesk/internal/domain/models"
	"CrudeDesk/internal/usecase"
	xhttp "CrudeDesk/pkg/http"
	"CrudeDesk/pkg/http/middleware"
	xlogger "CrudeDesk/pkg/logger"
	"CrudeDesk/pkg/util"
)

// MarketHandler serves the /v1/market endpoints. Every endpoint resolves
// through the same pipeline; handlers only parse, normalize and map errors.
type MarketHandler struct {
	logger   *xlogger.Logger
	resolver *usecase.Resolver
	tokens   []string
}

func NewMarketHandler(logger *xlogger.Logger, resolver *usecase.Resolver, tokens []string) *MarketHandler {
	return &MarketHandler{logger: logger, resolver: resolver, tokens: tokens}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1/market", middleware.BearerAuth(h.tokens))
	g.GET("/snapshot", h.Snapshot)
	g.GET("/drivers", h.Drivers)
	g.GET("/regime", h.Regime)
	g.GET("/events", h.Events)
}

// parseAsOf accepts RFC3339 or unix seconds; empty means now.
func parseAsOf(s string) (time.Time, bool) {
	if s == "" {
		return time.Now().UTC(), true
	}
	return util.ParseTime(s)
}

func (h *MarketHandler) resolve(c echo.Context, market, asOf string, kind models.Kind) (*usecase.Resolution, time.Time, error) {
	ts, ok := parseAsOf(asOf)
	if !ok {
		return nil, time.Time{}, xhttp.BadRequestErrorf("asOf %q is not a valid timestamp", asOf)
	}
	m, err := models.ParseMarket(market)
	if err != nil {
		return nil, time.Time{}, mapError(err)
	}

	key := h.resolver.Clock().Key(m, ts)
	res, err := h.resolver.Resolve(c.Request().Context(), key, kind)
	if err != nil {
		h.logger.Error("resolve failed",
			xlogger.String("market", market),
			xlogger.String("kind", string(kind)),
			xlogger.Error(err))
		return nil, time.Time{}, mapError(err)
	}
	return res, ts, nil
}

func mapError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInvalidMarket):
		return xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrInvalidWindow):
		return xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrHistoricalDataUnavailable):
		return xhttp.NotFoundError(err.Error())
	default:
		return xhttp.UnavailableError(err.Error()).WithError(err)
	}
}

func (h *MarketHandler) Snapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, _, err := h.resolve(c, req.Market, req.AsOf, models.KindSnapshot)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, json.RawMessage(res.Payload))
}

func (h *MarketHandler) Drivers(c echo.Context) error {
	req := &models.DriversRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, _, err := h.resolve(c, req.Market, req.AsOf, models.KindDrivers)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, json.RawMessage(res.Payload))
}

func (h *MarketHandler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, _, err := h.resolve(c, req.Market, req.AsOf, models.KindRegime)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, json.RawMessage(res.Payload))
}

// eventsResponse wraps the windowed events with the query that produced them.
type eventsResponse struct {
	Market     models.Market        `json:"market"`
	TradingDay string               `json:"tradingDay"`
	AsOf       time.Time            `json:"asOf"`
	WindowDays int                  `json:"windowDays"`
	Events     []models.EventRecord `json:"events"`
}

func (h *MarketHandler) Events(c echo.Context) error {
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	windowDays := usecase.DefaultWindowDays
	if req.WindowDays != "" {
		windowDays = util.ParseIntDefault(req.WindowDays, -1)
		if windowDays < 1 {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("windowDays %q must be an integer >= 1", req.WindowDays))
		}
	}

	res, asOf, err := h.resolve(c, req.Market, req.AsOf, models.KindEvents)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	events, err := h.resolver.WindowEvents(res.Payload, asOf, windowDays)
	if err != nil {
		return xhttp.AppErrorResponse(c, mapError(err))
	}

	return xhttp.SuccessResponse(c, eventsResponse{
		Market:     res.Key.Market,
		TradingDay: res.Key.Day(),
		AsOf:       asOf,
		WindowDays: windowDays,
		Events:     events,
	})
}
