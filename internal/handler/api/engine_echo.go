package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
	xlogger "FinFuse/pkg/logger"
	"FinFuse/pkg/ws"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// EngineHandler exposes the fusion engine over Echo.
type EngineHandler struct {
	logger    *xlogger.Logger
	learning  *usecase.LearningUsecase
	consensus *usecase.ConsensusUsecase
	drift     *usecase.DriftUsecase
	audit     *usecase.TradeAuditUsecase
	snapshots *usecase.Snapshotter
	stream    *ws.Hub // nil when streaming is disabled
}

func NewEngineHandler(
	logger *xlogger.Logger,
	learning *usecase.LearningUsecase,
	consensus *usecase.ConsensusUsecase,
	drift *usecase.DriftUsecase,
	audit *usecase.TradeAuditUsecase,
	snapshots *usecase.Snapshotter,
	stream *ws.Hub,
) *EngineHandler {
	return &EngineHandler{
		logger:    logger,
		learning:  learning,
		consensus: consensus,
		drift:     drift,
		audit:     audit,
		snapshots: snapshots,
		stream:    stream,
	}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/weights", h.Weights)
	g.POST("/weights/reset", h.ResetWeights)
	g.POST("/learn", h.Learn)
	g.GET("/learn/stats", h.LearnStats)
	g.GET("/learn/history", h.LearnHistory)
	g.POST("/consensus", h.Consensus)
	g.POST("/drift", h.CheckDrift)
	g.GET("/drift/history", h.DriftHistory)
	g.POST("/costs", h.Costs)

	ledger := g.Group("/ledger")
	ledger.POST("/trades", h.LogEntry)
	ledger.GET("/trades", h.ListTrades)
	ledger.GET("/trades/:id", h.GetTrade)
	ledger.POST("/trades/:id/exit", h.LogExit)
	ledger.POST("/trades/:id/cancel", h.CancelTrade)
	ledger.GET("/summary", h.Summary)
	ledger.GET("/archive", h.Archive)

	g.POST("/positions", h.OpenPosition)
	g.POST("/positions/:id/close", h.ClosePosition)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/stream", h.Stream)
}

func (h *EngineHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *EngineHandler) Weights(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.learning.Weights())
}

func (h *EngineHandler) ResetWeights(c echo.Context) error {
	h.learning.Reset()
	return xhttp.SuccessResponse(c, h.learning.Weights())
}

func (h *EngineHandler) Learn(c echo.Context) error {
	req := &models.LearnRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	outcome, weights, err := h.learning.Learn(c.Request().Context(), req.Outcome())
	if err != nil {
		return h.fail(c, "learn", err)
	}
	return xhttp.SuccessResponse(c, models.LearnResponse{Outcome: outcome, Weights: weights})
}

func (h *EngineHandler) LearnStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.learning.Stats())
}

func (h *EngineHandler) LearnHistory(c echo.Context) error {
	rows := h.learning.History(xhttp.QueryInt(c, "limit", defaultListLimit, 1, maxListLimit))
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) Consensus(c echo.Context) error {
	req := &models.ConsensusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.consensus.Calculate(c.Request().Context(), req.HorizonSignals())
	if err != nil {
		return h.fail(c, "consensus", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) CheckDrift(c echo.Context) error {
	req := &models.DriftRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.drift.Check(c.Request().Context(), req.Metrics())
	if err != nil {
		return h.fail(c, "drift", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *EngineHandler) DriftHistory(c echo.Context) error {
	res := models.DriftHistoryResponse{
		Trend:   h.drift.Trend(),
		History: h.drift.History(),
	}
	if m, ok := h.drift.Latest(); ok {
		res.Latest = &m
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Costs(c echo.Context) error {
	req := &models.CostRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.ExitPrice != nil {
		rt, err := h.audit.RoundTrip(req.Symbol, req.OrderType, req.Side, req.Quantity, req.Price, *req.ExitPrice)
		if err != nil {
			return h.fail(c, "costs", err)
		}
		return xhttp.SuccessResponse(c, rt)
	}
	cost, err := h.audit.Cost(req.Symbol, req.OrderType, req.Side, req.Quantity, req.Price)
	if err != nil {
		return h.fail(c, "costs", err)
	}
	return xhttp.SuccessResponse(c, cost)
}

func (h *EngineHandler) LogEntry(c echo.Context) error {
	req := &models.TradeEntryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, err := h.audit.LogEntry(c.Request().Context(), req.Entry())
	if err != nil {
		return h.fail(c, "ledger_entry", err)
	}
	return xhttp.CreatedResponse(c, t)
}

// ListTrades returns OPEN trades with ?status=open, otherwise the most recent trades.
func (h *EngineHandler) ListTrades(c echo.Context) error {
	var rows []models.TradeLog
	if strings.EqualFold(c.QueryParam("status"), string(models.TradeOpen)) {
		rows = h.audit.OpenTrades()
	} else {
		rows = h.audit.History(xhttp.QueryInt(c, "limit", defaultListLimit, 1, maxListLimit))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) GetTrade(c echo.Context) error {
	t, err := h.audit.Trade(c.Param("id"))
	if err != nil {
		return h.fail(c, "ledger_get", err)
	}
	return xhttp.SuccessResponse(c, t)
}

func (h *EngineHandler) LogExit(c echo.Context) error {
	req := &models.TradeExitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, err := h.audit.LogExit(c.Request().Context(), c.Param("id"), req.Exit())
	if err != nil {
		return h.fail(c, "ledger_exit", err)
	}
	return xhttp.SuccessResponse(c, t)
}

func (h *EngineHandler) CancelTrade(c echo.Context) error {
	t, err := h.audit.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "ledger_cancel", err)
	}
	return xhttp.SuccessResponse(c, t)
}

func (h *EngineHandler) Summary(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.audit.Summary())
}

// Archive queries finalized trades: ?symbol=&from=&to=&limit=. The window defaults to the last 30 days.
func (h *EngineHandler) Archive(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_REQUIRED", "symbol", "symbol is required", http.StatusBadRequest))
	}
	now := time.Now().UTC()
	to := xhttp.QueryTime(c, "to", now)
	from := xhttp.QueryTime(c, "from", to.Add(-30*24*time.Hour))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("from must not be after to"))
	}
	rows, err := h.audit.ArchivedTrades(c.Request().Context(), symbol, from, to, xhttp.QueryInt(c, "limit", defaultListLimit, 1, maxListLimit))
	if err != nil {
		return h.fail(c, "ledger_archive", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) OpenPosition(c echo.Context) error {
	req := &models.PositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, cost, err := h.audit.OpenPosition(c.Request().Context(), usecase.PositionOrder{
		Symbol:      req.Symbol,
		Side:        req.Side,
		OrderType:   req.OrderType,
		Quantity:    req.Quantity,
		MarketPrice: req.MarketPrice,
	})
	if err != nil {
		return h.fail(c, "position_open", err)
	}
	return xhttp.CreatedResponse(c, models.PositionResponse{Trade: t, Cost: cost})
}

func (h *EngineHandler) ClosePosition(c echo.Context) error {
	req := &models.ClosePositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, cost, err := h.audit.ClosePosition(c.Request().Context(), c.Param("id"), req.MarketPrice)
	if err != nil {
		return h.fail(c, "position_close", err)
	}
	return xhttp.SuccessResponse(c, models.PositionResponse{Trade: t, Cost: cost})
}

func (h *EngineHandler) Snapshot(c echo.Context) error {
	snap, err := h.snapshots.Latest(c.Request().Context())
	if errors.Is(err, domrepo.ErrNotFound) {
		// nothing published yet; serve the live view
		live := h.snapshots.Snapshot()
		return xhttp.SuccessResponse(c, &live)
	}
	if err != nil {
		return h.fail(c, "snapshot", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

// Stream upgrades to a websocket that receives consensus results and retrain
// recommendations as they happen.
func (h *EngineHandler) Stream(c echo.Context) error {
	if h.stream == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableErrorf("event stream is disabled"))
	}
	if err := h.stream.ServeWS(c.Response(), c.Request()); err != nil {
		if errors.Is(err, ws.ErrClosed) {
			return nil
		}
		// the upgrader has already written the HTTP error
		h.logger.Debug("stream upgrade failed", xlogger.Error(err))
	}
	return nil
}

// fail maps use case errors to AppError responses. Unexpected errors are logged.
func (h *EngineHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		appErr = xhttp.BadRequestErrorf("%s", err.Error())
	case errors.Is(err, usecase.ErrTradeNotFound):
		appErr = xhttp.NotFoundErrorf("%s", err.Error())
	case errors.Is(err, usecase.ErrTradeNotOpen), errors.Is(err, usecase.ErrTradeIDConflict):
		appErr = xhttp.ConflictErrorf("%s", err.Error())
	case errors.Is(err, usecase.ErrArchiveDisabled), errors.Is(err, usecase.ErrSnapshotsDisabled):
		appErr = xhttp.ServiceUnavailableErrorf("%s", err.Error())
	default:
		h.logger.Error(op+" failed", xlogger.String("path", c.Path()), xlogger.Error(err))
		appErr = xhttp.InternalErrorf("%s failed", op)
	}
	return xhttp.AppErrorResponse(c, appErr.WithError(err))
}
