package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome metrics - Track how issuance attempts end
var (
	IssuancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscert_issuances_total",
			Help: "Total number of issuance attempts by outcome (confirmed or failure kind)",
		},
		[]string{"outcome"},
	)

	GenericImageFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuscert_generic_image_fallbacks_total",
		Help: "Issuances that fell back to the pre-published generic image",
	})

	RenderFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuscert_render_fallbacks_total",
		Help: "Rich renders that failed and were replaced by the simple renderer",
	})

	SignerSelections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscert_signer_selections_total",
			Help: "Signing path chosen per issuance attempt",
		},
		[]string{"signer"},
	)

	ReconciledTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscert_reconciled_transactions_total",
			Help: "Pending transactions resolved by the reconciliation job",
		},
		[]string{"status"},
	)
)

// Latency metrics
var (
	StoreUploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campuscert_store_upload_duration_seconds",
			Help:    "Time taken by content store uploads",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ConfirmationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campuscert_confirmation_duration_seconds",
		Help:    "Time between transaction submission and observed confirmation",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)
