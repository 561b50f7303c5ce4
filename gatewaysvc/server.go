package gatewaysvc

import (
	"context"
	"sync"
	"time"

	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/lorawan"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/golang/protobuf/ptypes/empty"

	"github.com/akhenakh/concentratord/concentrator"
	"github.com/akhenakh/concentratord/gw"
	"github.com/akhenakh/concentratord/storage"
)

type Server struct {
	logger     log.Logger
	Journal    storage.Journal
	gatewayID  lorawan.EUI64
	translator *gw.Translator
	scheduler  gw.Scheduler
	config     Config

	mu          sync.Mutex
	subscribers map[chan *gwpb.UplinkFrame]struct{}
	done        chan struct{}
	closeOnce   sync.Once
}

type Config struct {
	// SubscriberBuffer is the number of uplinks buffered per stream
	// before dropping
	SubscriberBuffer int

	// PollInterval is the concentrator receive polling period
	PollInterval time.Duration
}

func NewServer(logger log.Logger, gatewayID lorawan.EUI64, translator *gw.Translator, scheduler gw.Scheduler, cfg Config) *Server {
	logger = log.With(logger, "component", "server")
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	return &Server{
		logger:      logger,
		gatewayID:   gatewayID,
		translator:  translator,
		scheduler:   scheduler,
		config:      cfg,
		subscribers: make(map[chan *gwpb.UplinkFrame]struct{}),
		done:        make(chan struct{}),
	}
}

// Close ends the uplink streams so the gRPC server can stop gracefully.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// HandleUplink translates a received packet, journals it and fans it out
// to the uplink streams.
func (s *Server) HandleUplink(ctx context.Context, p *concentrator.RxPacket) {
	frame, err := s.translator.UplinkToProto(s.gatewayID, p)
	if err != nil {
		level.Debug(s.logger).Log("msg", "can't translate uplink", "count_us", p.CountUS, "error", err)
		return
	}

	level.Debug(s.logger).Log(
		"msg", "received uplink",
		"frequency", p.Frequency,
		"count_us", p.CountUS,
		"rssi", p.RSSI,
		"size", p.Size,
	)

	if s.Journal != nil {
		if err := storage.StoreUplink(s.Journal, frame, time.Now()); err != nil {
			level.Error(s.logger).Log("msg", "can't store uplink", "error", err)
		}
	}

	s.publish(frame)
}

func (s *Server) publish(frame *gwpb.UplinkFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.subscribers {
		select {
		case c <- frame:
		default:
			level.Warn(s.logger).Log("msg", "uplink stream too slow, dropping uplink")
		}
	}
}

func (s *Server) subscribe() (chan *gwpb.UplinkFrame, func()) {
	c := make(chan *gwpb.UplinkFrame, s.config.SubscriberBuffer)
	s.mu.Lock()
	s.subscribers[c] = struct{}{}
	s.mu.Unlock()

	return c, func() {
		s.mu.Lock()
		delete(s.subscribers, c)
		s.mu.Unlock()
	}
}

// Receive polls the concentrator until ctx is done, a receive error is
// returned as is and should be considered fatal.
func (s *Server) Receive(ctx context.Context, rx concentrator.Receiver) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pkts, err := rx.Receive()
			if err != nil {
				return err
			}
			for i := range pkts {
				s.HandleUplink(ctx, &pkts[i])
			}
		}
	}
}

func (s *Server) SendDownlink(ctx context.Context, frame *gwpb.DownlinkFrame) (*gwpb.DownlinkTXAck, error) {
	_, ack := s.translator.HandleDownlink(frame, s.scheduler)
	if ack.Error != "" {
		level.Warn(s.logger).Log("msg", "downlink rejected", "token", frame.GetToken(), "error", ack.Error)
	}
	return ack, nil
}

func (s *Server) StreamUplinks(_ *empty.Empty, stream Gateway_StreamUplinksServer) error {
	c, cancel := s.subscribe()
	defer cancel()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		case frame := <-c:
			if err := stream.Send(frame); err != nil {
				return err
			}
		}
	}
}
