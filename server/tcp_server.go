package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

// TCPServer lets a remote client take the human seat. The first client to
// connect gets the seat.
type TCPServer struct {
	address  string
	listener net.Listener
	logger   *zap.Logger
	mu       sync.Mutex
	conn     net.Conn
}

func NewTCPServer(address string, logger *zap.Logger) *TCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPServer{
		address: address,
		logger:  logger.Named("tcp"),
	}
}

func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.logger.Info("waiting for the human seat", zap.String("addr", listener.Addr().String()))
	return nil
}

func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Accept waits for one client and wraps its connection in a Console.
func (s *TCPServer) Accept(ctx context.Context) (*Console, error) {
	type accepted struct {
		conn net.Conn
		err  error
	}
	result := make(chan accepted, 1)
	go func() {
		conn, err := s.listener.Accept()
		result <- accepted{conn, err}
	}()

	select {
	case <-ctx.Done():
		s.listener.Close()
		return nil, ctx.Err()
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("failed to accept connection: %w", r.err)
		}
		s.mu.Lock()
		s.conn = r.conn
		s.mu.Unlock()
		s.logger.Info("client connected", zap.String("remote", r.conn.RemoteAddr().String()))
		return NewConsole(r.conn, r.conn, s.logger), nil
	}
}

func (s *TCPServer) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
}
