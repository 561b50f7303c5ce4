package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "concentratord"

	ReasonLabel = "reason"
	FieldLabel  = "field"

	FieldTime     = "time"
	FieldGPSEpoch = "time_since_gps_epoch"
)

var (
	UplinkCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uplink_total",
			Help:      "The total number of uplinks translated",
		},
	)

	UplinkErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uplink_error_total",
			Help:      "The total number of uplinks rejected",
		},
		[]string{ReasonLabel},
	)

	DownlinkCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downlink_total",
			Help:      "The total number of downlinks translated",
		},
	)

	DownlinkErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downlink_error_total",
			Help:      "The total number of downlinks rejected",
		},
		[]string{ReasonLabel},
	)

	TimeUnavailableCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_unavailable_total",
			Help:      "The total number of uplink time fields omitted because no time reference was available",
		},
		[]string{FieldLabel},
	)

	CounterSyncCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_sync_total",
			Help:      "The total number of concentrator counter samples",
		},
	)

	CounterWrapCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_wrap_total",
			Help:      "The total number of concentrator counter overflows",
		},
	)

	CounterDriftGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counter_drift_microseconds",
			Help:      "The drift between the host clock and the concentrator counter over the last sync period",
		},
	)

	JournalInsertCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_insert_total",
			Help:      "The total number of uplinks stored in the journal",
		},
	)
)
