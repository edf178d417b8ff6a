package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsReceivedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp_ingestion",
			Name:      "webhook_events_received_total",
			Help:      "Total number of webhook events received, by event type.",
		},
		[]string{"event_type"}, // "message", "status"
	)

	messagesIngestedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp_ingestion",
			Name:      "messages_ingested_total",
			Help:      "Total number of inbound message events processed.",
		},
		[]string{"result"}, // "created", "duplicate", "missing_provider_id", "invalid_sender", "error"
	)

	ingestDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "whatsapp_ingestion",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of inbound message ingestion.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	statusUpdatesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp_ingestion",
			Name:      "status_updates_total",
			Help:      "Total number of status events processed.",
		},
		[]string{"result"}, // "applied", "ignored", "buffered", "dropped", "invalid_status", "error"
	)

	natsStatusCallbacksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "whatsapp_ingestion",
			Name:      "nats_status_callbacks_total",
			Help:      "Total number of status callbacks consumed from NATS.",
		},
		[]string{"result"}, // "received", "handled", "rejected", "bad_subject", "bad_payload"
	)

	statusBufferGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "whatsapp_ingestion",
			Name:      "status_buffer_pending",
			Help:      "Status events currently buffered awaiting their message.",
		},
	)
)
