package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/mdlayher/vsock"
)

const readTimeout = 30 * time.Second

// AuctionServer serves one auction over vsock, one JSON request per connection
type AuctionServer struct {
	port    uint32
	service *AuctionService
}

func NewAuctionServer(port uint32, service *AuctionService) *AuctionServer {
	return &AuctionServer{port: port, service: service}
}

func (s *AuctionServer) Start() error {
	maxWorkers, err := getRequiredEnvInt("AUCTIOND_MAX_WORKERS")
	if err != nil {
		return fmt.Errorf("failed to get max workers config: %w", err)
	}
	if maxWorkers <= 0 {
		return fmt.Errorf("AUCTIOND_MAX_WORKERS must be positive, got %d", maxWorkers)
	}

	listener, err := vsock.Listen(s.port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Auction server listening on vsock port %d", s.port)

	s.serve(listener, maxWorkers)
	return nil
}

// serve accepts until the listener is closed
func (s *AuctionServer) serve(listener net.Listener, maxWorkers int) {
	semaphore := make(chan struct{}, maxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Printf("INFO: Listener closed, no longer accepting connections")
				return
			}
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *AuctionServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	// The client half-closes its write side once the request is sent
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	response := s.service.Handle(buf.Bytes())

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func main() {
	port, err := getRequiredEnvInt("AUCTIOND_VSOCK_PORT")
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := LoadAuctionConfig(os.Getenv("AUCTIOND_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	var publisher EventPublisher = noopPublisher{}
	if natsURL := os.Getenv("AUCTIOND_NATS_URL"); natsURL != "" {
		jsPublisher, err := NewJetStreamPublisher(natsURL)
		if err != nil {
			log.Fatal(err)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher
	} else {
		log.Printf("INFO: AUCTIOND_NATS_URL not set, auction events disabled")
	}

	service, err := NewAuctionService(cfg, publisher, getEnclaveAttester)
	if err != nil {
		log.Fatal(err)
	}

	server := NewAuctionServer(uint32(port), service)
	if err := server.Start(); err != nil {
		log.Fatal(err)
	}
}
