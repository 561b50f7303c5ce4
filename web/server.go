package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/golang/protobuf/jsonpb"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/akhenakh/concentratord/gw"
	"github.com/akhenakh/concentratord/storage"
	"github.com/akhenakh/concentratord/timebase"
)

const defaultUplinksCount = 20

// Clock exposes the timekeeping state, usually a *timebase.TimeBase.
type Clock interface {
	Mode() timebase.ClockMode
	TimeZone() timebase.TimeZone
	Anchor() timebase.Anchor
}

// CounterEstimator estimates the current concentrator counter without
// touching the hardware, usually a *monitor.Monitor.
type CounterEstimator interface {
	EstimateCounter() uint32
}

type Server struct {
	logger     log.Logger
	clock      Clock
	counter    CounterEstimator
	journal    storage.Journal
	translator *gw.Translator
	scheduler  gw.Scheduler
	marshaler  *jsonpb.Marshaler
}

func NewServer(logger log.Logger, clock Clock, counter CounterEstimator, journal storage.Journal, translator *gw.Translator, scheduler gw.Scheduler) *Server {
	logger = log.With(logger, "component", "web")
	return &Server{
		logger:     logger,
		clock:      clock,
		counter:    counter,
		journal:    journal,
		translator: translator,
		scheduler:  scheduler,
		marshaler:  &jsonpb.Marshaler{OrigName: true},
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/time", s.TimeQuery).Methods(http.MethodGet)
	r.HandleFunc("/api/uplinks", s.UplinksQuery).Methods(http.MethodGet)
	r.HandleFunc("/api/uplinks/{id}", s.UplinkQuery).Methods(http.MethodGet)
	r.HandleFunc("/api/downlink", s.Downlink).Methods(http.MethodPost)

	return handlers.CompressHandler(
		handlers.CORS(handlers.AllowedOrigins([]string{"*"}))(r),
	)
}

func (s *Server) startSpan(r *http.Request, operationName string) opentracing.Span {
	wireContext, err := opentracing.GlobalTracer().Extract(
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(r.Header))
	if err != nil {
		level.Debug(s.logger).Log("msg", "can't find a span", "error", err)
	}

	return opentracing.StartSpan(
		operationName,
		ext.RPCServerOption(wireContext))
}

type timeResponse struct {
	Mode             string    `json:"mode"`
	TimeZone         string    `json:"timezone"`
	AnchorBase       time.Time `json:"anchor_base"`
	AnchorWraps      uint64    `json:"anchor_wraps"`
	LastCounter      uint32    `json:"last_counter"`
	EstimatedCounter uint32    `json:"estimated_counter"`
}

func (s *Server) TimeQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/time")
	defer span.Finish()

	anchor := s.clock.Anchor()
	resp := timeResponse{
		Mode:             s.clock.Mode().String(),
		TimeZone:         s.clock.TimeZone().String(),
		AnchorBase:       anchor.Base,
		AnchorWraps:      anchor.Wraps,
		LastCounter:      anchor.LastCounter,
		EstimatedCounter: s.counter.EstimateCounter(),
	}

	b, err := json.Marshal(resp)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't marshal json", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func (s *Server) UplinksQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/uplinks")
	defer span.Finish()

	count := defaultUplinksCount
	if v := r.URL.Query().Get("count"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c <= 0 {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		count = c
	}

	frames, err := storage.Uplinks(s.journal, count)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't query uplinks", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range frames {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := s.marshaler.Marshal(&buf, f); err != nil {
			level.Error(s.logger).Log("msg", "can't marshal json", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	buf.WriteByte(']')

	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func (s *Server) UplinkQuery(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/uplinks/id")
	defer span.Finish()

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "invalid uplink id", http.StatusBadRequest)
		return
	}

	frame, err := storage.Uplink(s.journal, id)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't query uplink", "uplink_id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if frame == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := s.marshaler.Marshal(w, frame); err != nil {
		level.Error(s.logger).Log("msg", "can't marshal json", "uplink_id", id, "error", err)
	}
}

// Downlink accepts a DownlinkFrame in its protobuf JSON form and answers
// with the DownlinkTXAck.
func (s *Server) Downlink(w http.ResponseWriter, r *http.Request) {
	span := s.startSpan(r, "/api/downlink")
	defer span.Finish()

	frame := &gwpb.DownlinkFrame{}
	if err := jsonpb.Unmarshal(r.Body, frame); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, ack := s.translator.HandleDownlink(frame, s.scheduler)
	span.SetTag("downlink.accepted", ack.Error == "")

	w.Header().Set("Content-Type", "application/json")
	if ack.Error != "" {
		level.Warn(s.logger).Log("msg", "downlink rejected", "token", frame.GetToken(), "error", ack.Error)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := s.marshaler.Marshal(w, ack); err != nil {
		level.Error(s.logger).Log("msg", "can't marshal json", "error", err)
	}
}
