package server

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/berfenger/growatt2mqtt/internal/core/domain"
	"github.com/berfenger/growatt2mqtt/internal/core/service"
	"github.com/berfenger/growatt2mqtt/pkg/growatt_rs232"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	requestTimeout = 5 * time.Second
	// captured streams are a few frames, 64K is far above that
	maxBodySize = "64K"
)

var errUnexpectedResponse = errors.New("unexpected response")

type statusResponse struct {
	Status growatt_rs232.Status `json:"status"`
	Config driverConfigJSON     `json:"config"`
}

type driverConfigJSON struct {
	RequestIntervalMillis int64 `json:"request_interval_millis"`
	ReceiveTimeoutMillis  int64 `json:"receive_timeout_millis"`
	ReplyWaitMillis       int64 `json:"reply_wait_millis"`
}

type readingsResponse struct {
	Online     bool                    `json:"online"`
	AgeSeconds *float64                `json:"age_seconds"`
	Readings   []service.CachedReading `json:"readings"`
}

type reinitializeResponse struct {
	Present bool `json:"present"`
}

type decodeRequest struct {
	Hex string `json:"hex"`
}

type decodedFrame struct {
	Readings []growatt_rs232.Reading `json:"readings"`
}

type decodeResponse struct {
	Frames    []decodedFrame `json:"frames"`
	Discarded int            `json:"discarded"`
	Pending   int            `json:"pending"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	if s.metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	api := e.Group("/api", middleware.BodyLimit(maxBodySize))
	api.GET("/status", s.StatusHandler)
	api.GET("/readings", s.ReadingsHandler)
	api.POST("/reinitialize", s.ReinitializeHandler)
	api.POST("/decode", s.DecodeHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// askMaster sends req to the master actor and waits for a response of type T.
func askMaster[T domain.ActorResponse](s *Server, req domain.ActorRequest) (T, error) {
	var zero T
	res, err := s.rootContext.RequestFuture(s.masterActor, req, requestTimeout).Result()
	if err != nil {
		return zero, err
	}
	response, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", errUnexpectedResponse, res)
	}
	if err := response.Err(); err != nil {
		return zero, err
	}
	return response, nil
}

func (s *Server) askFailed(c echo.Context, op string, err error) error {
	s.logger.Warn(op+" request failed", zap.Error(err))
	if errors.Is(err, errUnexpectedResponse) {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
}

func (s *Server) StatusHandler(c echo.Context) error {
	response, err := askMaster[domain.GetInverterStatusResponse](s, domain.GetInverterStatusRequest{})
	if err != nil {
		return s.askFailed(c, "status", err)
	}
	return c.JSON(http.StatusOK, statusResponse{
		Status: response.Status,
		Config: driverConfigJSON{
			RequestIntervalMillis: response.Config.RequestInterval.Milliseconds(),
			ReceiveTimeoutMillis:  response.Config.ReceiveTimeout.Milliseconds(),
			ReplyWaitMillis:       response.Config.ReplyWait.Milliseconds(),
		},
	})
}

func (s *Server) ReadingsHandler(c echo.Context) error {
	resp := readingsResponse{
		Online:   s.readings.Online(),
		Readings: s.readings.Snapshot(),
	}
	if age, ok := s.readings.Age(); ok {
		seconds := age.Seconds()
		resp.AgeSeconds = &seconds
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) ReinitializeHandler(c echo.Context) error {
	response, err := askMaster[domain.ReinitializeLinkResponse](s, domain.ReinitializeLinkRequest{})
	if err != nil {
		return s.askFailed(c, "reinitialize", err)
	}
	return c.JSON(http.StatusOK, reinitializeResponse{Present: response.Present})
}

// DecodeHandler runs a captured byte stream through the frame assembler and decodes every
// complete frame, with no publish window.
func (s *Server) DecodeHandler(c echo.Context) error {
	var req decodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	stream, err := parseHex(req.Hex)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	var assembler growatt_rs232.FrameAssembler
	resp := decodeResponse{Frames: []decodedFrame{}}
	for _, b := range stream {
		if !assembler.Accepts(b) {
			resp.Discarded++
		}
		if frame, complete := assembler.Push(b); complete {
			resp.Frames = append(resp.Frames, decodedFrame{Readings: growatt_rs232.Decode(frame)})
		}
	}
	resp.Pending = assembler.Len()
	return c.JSON(http.StatusOK, resp)
}

func parseHex(s string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	if cleaned == "" {
		return nil, errors.New("empty byte stream")
	}
	return hex.DecodeString(cleaned)
}
