package pubsub

import (
	"context"
	"net"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
)

// Server wraps the Pub/Sub HTTP router as a dskit services.Service,
// mirroring the Kafka front door's server.go lifecycle shape so both
// front doors start/stop identically under the app's service manager.
type Server struct {
	services.Service

	svc        *Service
	listenAddr string
	logger     log.Logger

	httpServer *http.Server
}

// NewServer builds a Server bound to listenAddr, serving svc's router.
func NewServer(listenAddr string, svc *Service, logger log.Logger) *Server {
	s := &Server{svc: svc, listenAddr: listenAddr, logger: logger}
	s.Service = services.NewBasicService(nil, s.running, s.stopping)
	return s
}

func (s *Server) running(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{Handler: s.svc.NewRouter()}

	errCh := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "pubsub http server listening", "addr", s.listenAddr)
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) stopping(_ error) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(context.Background())
}
