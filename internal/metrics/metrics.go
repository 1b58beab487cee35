package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatasetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polemap_dataset_loads_total",
			Help: "Dataset load attempts by source and outcome",
		},
		[]string{"source", "format", "status"},
	)

	RowsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polemap_rows_normalized_total",
			Help: "Rows successfully normalized across all loads",
		},
	)

	CellErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polemap_cell_errors_total",
			Help: "Cells degraded to null during normalization, by column",
		},
		[]string{"column"},
	)

	SeverityRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polemap_severity_rows",
			Help: "Rows in the current dataset by severity category",
		},
		[]string{"category"},
	)

	EditsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polemap_edits_appended_total",
			Help: "Edit records appended to the ledger, by column",
		},
		[]string{"column"},
	)

	EditsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polemap_edits_dropped_total",
			Help: "Edit fields dropped for unparseable or unknown input",
		},
	)

	ImageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polemap_image_fetches_total",
			Help: "Rig image proxy fetches by status",
		},
		[]string{"status"},
	)

	FTPPullsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polemap_ftp_pulls_total",
			Help: "FTP drop poll outcomes",
		},
		[]string{"status"},
	)
)
