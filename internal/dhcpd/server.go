package dhcpd

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// StatusListener receives lifecycle notifications: OnStart after Start and
// OnStop (with the transport's close error, if any) after Stop. Lease table
// mutations are not reported to it; they only drive the persistence queue.
type StatusListener interface {
	OnStart()
	OnStop(cause error)
}

// noopStatusListener discards every event.
type noopStatusListener struct{}

func (noopStatusListener) OnStart()     {}
func (noopStatusListener) OnStop(error) {}

// Server owns the UDP transport, lease table, allocator, and state machine,
// and runs the cooperative event loop described in spec.md §5: a single
// receive task, a 1 Hz tick task, and a decoupled persistence writer task.
// Grounded on the teacher's v4Server (Start/Stop/packetHandler) and
// dhcpsvc.DHCPServer (enabled *atomic.Bool, logger, Start/Shutdown).
type Server struct {
	cfg       *Configuration
	transport UdpTransport
	table     *leaseTable
	alloc     *allocator
	handler   *requestHandler
	queue     *persistenceQueue
	store     ClientStore
	dbPath    string
	logger    Logger
	listener  StatusListener
	rawSender *RawUnicastSender

	lifecycleMu sync.Mutex
	active      bool
	stopOnce    sync.Once
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// ServerOption configures NewServer.
type ServerOption func(*Server)

// WithLogger sets the Logger used throughout the server.
func WithLogger(l Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithStatusListener sets the StatusListener notified of lifecycle events.
func WithStatusListener(l StatusListener) ServerOption {
	return func(s *Server) { s.listener = l }
}

// WithClientStore sets the ClientStore and the path leases are persisted
// to and restored from.
func WithClientStore(store ClientStore, path string) ServerOption {
	return func(s *Server) {
		s.store = store
		s.dbPath = path
	}
}

// WithInterceptors registers MessageInterceptors run after the configured
// options merge, per spec.md §4.7.
func WithInterceptors(interceptors ...MessageInterceptor) ServerOption {
	return func(s *Server) { s.handler.interceptors = interceptors }
}

// WithTransport overrides the default UDP transport, mainly for tests.
func WithTransport(t UdpTransport) ServerOption {
	return func(s *Server) { s.transport = t }
}

// WithRawUnicastSender enables direct-to-MAC delivery for the yiaddr-unicast
// case in spec.md §4.6 (Linux only; see rawsend_linux.go).
func WithRawUnicastSender(sender *RawUnicastSender) ServerOption {
	return func(s *Server) { s.rawSender = sender }
}

// NewServer validates cfg and builds a Server ready for Start.
func NewServer(cfg *Configuration, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   noopLogger{},
		listener: noopStatusListener{},
		stopCh:   make(chan struct{}),
	}

	s.table = newLeaseTable(s.logger, cfg.OfferExpiration, func() {
		if s.queue != nil {
			s.queue.Enqueue()
		}
	})

	alloc, err := newAllocator(cfg.PoolStart, cfg.PoolEnd, cfg.Subnet(), cfg.Endpoint.IP, cfg.Reservations, s.table)
	if err != nil {
		return nil, fmt.Errorf("building allocator: %w", err)
	}
	s.alloc = alloc

	s.handler = &requestHandler{
		cfg:    cfg,
		table:  s.table,
		alloc:  s.alloc,
		logger: s.logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.table.logger = s.logger
	s.handler.logger = s.logger
	s.handler.unicastYiaddr = s.rawSender != nil

	if s.store != nil && s.dbPath != "" {
		if records, err := s.store.Read(s.dbPath); err == nil {
			s.table.Restore(records)
		} else {
			s.logger.Warn("restoring leases failed", "error", err)
		}
	}

	return s, nil
}

// Start binds the transport (if one wasn't injected via WithTransport) and
// launches the receive, tick, and persistence goroutines.
func (s *Server) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.active {
		return errors.New("dhcpd: server already started")
	}

	if s.transport == nil {
		t, err := newUDPTransport(s.cfg.Endpoint, s.cfg.Interface, int(s.cfg.MinimumPacketSize)*2)
		if err != nil {
			return err
		}
		s.transport = t
	}

	if s.store != nil {
		s.queue = newPersistenceQueue(s.store, s.dbPath, s.table, s.logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.queue.Run()
		}()
	}

	s.active = true
	s.stopCh = make(chan struct{})

	s.wg.Add(2)
	go s.receiveLoop()
	go s.tickLoop()

	s.listener.OnStart()

	return nil
}

// Stop flips active=false, closes the transport, and waits for all
// goroutines to exit, per spec.md §5's cancellation sequence.
func (s *Server) Stop() error {
	s.lifecycleMu.Lock()
	if !s.active {
		s.lifecycleMu.Unlock()

		return nil
	}
	s.active = false
	s.lifecycleMu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })

	err := s.transport.Close()

	if s.queue != nil {
		s.queue.Stop()
	}

	s.wg.Wait()

	s.listener.OnStop(err)

	return err
}

func (s *Server) receiveLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		peer, data, err := s.transport.Receive()
		if err != nil {
			if errors.Is(err, ErrTransportFatal) {
				s.logger.Error("transport fatal, stopping", "error", err)
				go func() { _ = s.Stop() }()

				return
			}

			s.logger.Warn("transport transient error", "error", err)

			continue
		}

		s.handleDatagram(peer, data)
	}
}

// handleDatagram decodes and dispatches one datagram. It never panics or
// propagates an error outward, per spec.md §7's "no exception escapes the
// receive handler" invariant.
func (s *Server) handleDatagram(peer *net.UDPAddr, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from panic handling datagram", "peer", peer, "panic", r)
		}
	}()

	req, err := DecodeMessage(data)
	if err != nil {
		s.logger.Debug("dropping malformed datagram", "peer", peer, "error", err)

		return
	}

	resp, dst, ok := s.handler.Handle(req, time.Now())
	if !ok {
		return
	}

	wire := EncodeMessageMinSize(resp, int(s.cfg.MinimumPacketSize))

	if s.rawSender != nil && req.CIAddr.IsUnspecified() && dst.IP.Equal(resp.YIAddr) && !dst.IP.Equal(broadcastAddr) {
		err = s.rawSender.Send(wire, s.cfg.Endpoint.IP, resp.YIAddr, req.CHAddr)
	} else {
		err = s.transport.Send(dst, wire)
	}

	if err != nil {
		s.logger.Warn("sending reply failed", "peer", dst, "error", err)
	}
}

func (s *Server) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.table.Tick(now)
		}
	}
}

// Leases returns a snapshot of the current lease table.
func (s *Server) Leases() []*ClientRecord {
	return s.table.Snapshot()
}
