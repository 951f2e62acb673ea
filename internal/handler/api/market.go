package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/usecase"
	xhttp "StockPulse/pkg/http"
	xlogger "StockPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type searchRequest struct {
	Keyword string `query:"keyword" validate:"required,max=32"`
}

// Error bodies use the {"detail": "..."} shape the frontend already consumes.
type errorDetail struct {
	Detail string `json:"detail"`
}

const (
	msgQuoteTooFrequent   = "您查询股票详情页太频繁了(识别码:%s)，请一小时后再试。"
	msgViewTooFrequent    = "您查询股票详情页太频繁了，请一小时后再试。"
	msgLoginRequired      = "智能诊断是 VIP 会员专属权益，请先登录账户。"
	msgUserDisabled       = "用户不存在或已被禁用，请联系管理员。"
	msgMembershipExpired  = "您的智能分析权益已消耗或已到期，请前往‘会员中心’续费开通。"
	msgQuotaExceededTempl = "您已达到每小时 %d 次分析的限制。请于 %s 后继续。"
)

// MarketHandler serves the market-data and diagnosis endpoints.
type MarketHandler struct {
	logger   *xlogger.Logger
	market   *usecase.MarketUseCase
	analysis *usecase.AnalysisUseCase
	views    *ratelimit.ViewLimiter
}

func NewMarketHandler(logger *xlogger.Logger, market *usecase.MarketUseCase, analysis *usecase.AnalysisUseCase, views *ratelimit.ViewLimiter) *MarketHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &MarketHandler{logger: logger, market: market, analysis: analysis, views: views}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/market/indices", h.Indices)
	g.GET("/market/rankings", h.Rankings)
	g.GET("/stock/search", h.Search)
	g.GET("/stock/quote/:symbol", h.Quote)
	g.GET("/stock/kline/:symbol", h.Kline)
	g.GET("/stock/analysis/:symbol", h.Analysis)
}

func (h *MarketHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MarketHandler) Indices(c echo.Context) error {
	return c.JSON(http.StatusOK, h.market.Indices(c.Request().Context()))
}

func (h *MarketHandler) Rankings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.market.Rankings(c.Request().Context()))
}

func (h *MarketHandler) Search(c echo.Context) error {
	req := &searchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"detail": verr})
	}
	keyword := strings.TrimSpace(req.Keyword)
	return c.JSON(http.StatusOK, h.market.Search(c.Request().Context(), keyword))
}

func (h *MarketHandler) Quote(c echo.Context) error {
	symbol := c.Param("symbol")
	identifier := h.callerIdentifier(c)
	if !h.views.Allow(identifier, symbol) {
		return c.JSON(http.StatusTooManyRequests, errorDetail{
			Detail: fmt.Sprintf(msgQuoteTooFrequent, identifier),
		})
	}
	return c.JSON(http.StatusOK, h.market.Quote(c.Request().Context(), symbol))
}

func (h *MarketHandler) Kline(c echo.Context) error {
	return c.JSON(http.StatusOK, h.market.Kline(c.Request().Context(), c.Param("symbol")))
}

func (h *MarketHandler) Analysis(c echo.Context) error {
	symbol := c.Param("symbol")
	identifier := h.callerIdentifier(c)
	if !h.views.Allow(identifier, symbol) {
		return c.JSON(http.StatusTooManyRequests, errorDetail{Detail: msgViewTooFrequent})
	}

	userID, _ := strconv.ParseInt(c.QueryParam("user_id"), 10, 64)
	res, err := h.analysis.Analyze(c.Request().Context(), symbol, userID)
	if err != nil {
		return h.analysisError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *MarketHandler) analysisError(c echo.Context, err error) error {
	var qerr *usecase.QuotaExceededError
	switch {
	case errors.Is(err, usecase.ErrLoginRequired):
		return c.JSON(http.StatusForbidden, errorDetail{Detail: msgLoginRequired})
	case errors.Is(err, usecase.ErrUserDisabled):
		return c.JSON(http.StatusForbidden, errorDetail{Detail: msgUserDisabled})
	case errors.Is(err, usecase.ErrMembershipExpired):
		return c.JSON(http.StatusForbidden, errorDetail{Detail: msgMembershipExpired})
	case errors.As(err, &qerr):
		return c.JSON(http.StatusTooManyRequests, errorDetail{
			Detail: fmt.Sprintf(msgQuotaExceededTempl, qerr.Limit, qerr.ResumeAt.Format("15:04:05")),
		})
	}
	h.logger.Error("analysis failed", xlogger.Error(err))
	return c.JSON(http.StatusInternalServerError, errorDetail{Detail: "服务器内部错误，请稍后再试。"})
}

// callerIdentifier keys the view limiter by user id when one is supplied,
// otherwise by the client address.
func (h *MarketHandler) callerIdentifier(c echo.Context) string {
	if uid := c.QueryParam("user_id"); uid != "" {
		return uid
	}
	return c.RealIP()
}
