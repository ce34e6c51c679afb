package jetstream

import (
	"fmt"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const readyTimeout = 5 * time.Second

// Server is an embedded NATS server with JetStream that accepts in-process
// connections only. Snapshots persist under its store directory.
type Server struct {
	ns       *server.Server
	storeDir string
}

func NewServer(storeDir string) (*Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "chatstream",
		DontListen: true,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("configure embedded NATS: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS not ready after %s", readyTimeout)
	}

	log.Debug().Str("store_dir", storeDir).Msg("embedded NATS ready")
	return &Server{ns: ns, storeDir: storeDir}, nil
}

// Connect opens an in-process client connection.
func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.ns.ClientURL(), nats.InProcessServer(s.ns), nats.Name("chatstream"))
}

func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	log.Debug().Str("store_dir", s.storeDir).Msg("embedded NATS stopped")
}
