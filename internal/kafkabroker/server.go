package kafkabroker

import (
	"context"
	"flag"
	"net"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
)

// Config configures the Kafka TCP listener. AdvertisePort and NodeID are
// declared as plain int so they register with the standard library's
// flag.IntVar; NodeInfo narrows them to int32 where the wire protocol
// requires it.
type Config struct {
	ListenAddress string `yaml:"listen_address"`
	AdvertiseHost string `yaml:"advertise_host"`
	AdvertisePort int    `yaml:"advertise_port"`
	NodeID        int    `yaml:"node_id"`
	ClusterID     string `yaml:"cluster_id"`
}

// RegisterFlagsAndApplyDefaults registers this component's flags under
// prefix, following the teacher's per-component config convention.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.ListenAddress = "0.0.0.0:9092"
	cfg.AdvertiseHost = "127.0.0.1"
	cfg.AdvertisePort = 9092
	cfg.NodeID = 0
	cfg.ClusterID = "morax"
	f.StringVar(&cfg.ListenAddress, prefix+".listen-address", cfg.ListenAddress, "TCP address the Kafka-protocol listener binds to.")
	f.StringVar(&cfg.AdvertiseHost, prefix+".advertise-host", cfg.AdvertiseHost, "Host advertised to clients in Metadata/FindCoordinator responses.")
	f.IntVar(&cfg.AdvertisePort, prefix+".advertise-port", cfg.AdvertisePort, "Port advertised to clients in Metadata responses.")
	f.IntVar(&cfg.NodeID, prefix+".node-id", cfg.NodeID, "This broker's node id.")
	f.StringVar(&cfg.ClusterID, prefix+".cluster-id", cfg.ClusterID, "Cluster id reported in Metadata responses.")
}

// NodeInfo narrows cfg to the wire-protocol NodeInfo shape.
func (cfg Config) NodeInfo() NodeInfo {
	return NodeInfo{
		NodeID:        int32(cfg.NodeID),
		AdvertiseHost: cfg.AdvertiseHost,
		AdvertisePort: int32(cfg.AdvertisePort),
		ClusterID:     cfg.ClusterID,
	}
}

// Server wraps the Kafka TCP listener as a dskit services.Service: its
// running loop accepts connections and spawns one ServeConn goroutine per
// connection, and stopping closes the listener and waits for in-flight
// connections to drain their current request (spec §5).
type Server struct {
	services.Service

	broker   *Broker
	cfg      Config
	listener net.Listener

	done chan struct{}
	wg   sync.WaitGroup
}

// NewServer builds the Kafka TCP listener service; it does not bind the
// socket until the service is started.
func NewServer(cfg Config, broker *Broker) *Server {
	s := &Server{broker: broker, cfg: cfg, done: make(chan struct{})}
	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)
	return s
}

func (s *Server) starting(_ context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

func (s *Server) running(ctx context.Context) error {
	level.Info(s.broker.Logger).Log("msg", "kafka listener started", "addr", s.listener.Addr().String())
	go func() {
		<-ctx.Done()
		close(s.done)
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.broker.ServeConn(ctx, conn, s.done)
		}()
	}
}

func (s *Server) stopping(failureCase error) error {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}
