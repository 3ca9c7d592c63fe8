package sync

import (
	"bufio"
	"context"
	"errors"
	"net"
	stdsync "sync"

	"go.uber.org/zap"
)

// Server accepts line-delimited JSON feed subscribers over plain TCP.
type Server struct {
	Addr string
	Hub  *Hub

	logger *zap.Logger
	mu     stdsync.Mutex
	ln     net.Listener
}

func NewServer(addr string, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Hub: hub, logger: logger}
}

// Run listens until ctx is cancelled or Close is called.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("tcp feed listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("tcp accept", zap.Error(err))
			continue
		}

		if _, err := conn.Write(s.Hub.welcome("tcp")); err != nil {
			_ = conn.Close()
			continue
		}
		s.Hub.Add(conn)
		s.logger.Info("feed client connected", zap.Stringer("addr", conn.RemoteAddr()))

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				s.logger.Info("feed client disconnected", zap.Stringer("addr", c.RemoteAddr()))
			}()

			// Subscribers have nothing to say; drain until they hang up.
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// ListenAddr is the bound address once Run has started, else "".
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
