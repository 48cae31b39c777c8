package modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const (
	serverTimeout    = 30 * time.Second
	serverMaxClients = 5
)

type Server struct {
	server *modbus.ModbusServer
	url    string
	logger *zap.Logger
}

func NewServer(port uint, bank *RegisterBank, logger *zap.Logger) (*Server, error) {
	url := fmt.Sprintf("tcp://0.0.0.0:%d", port)
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    serverTimeout,
		MaxClients: serverMaxClients,
	}, bank)
	if err != nil {
		return nil, err
	}
	return &Server{
		server: server,
		url:    url,
		logger: logger.With(zap.String("url", url)),
	}, nil
}

func (s *Server) Start() error {
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("modbus server start: %w", err)
	}
	s.logger.Info("modbus server listening")
	return nil
}

func (s *Server) Stop() error {
	s.logger.Info("modbus server stopping")
	return s.server.Stop()
}
