package handlers

import (
	"context"

	"hotelpos-billing-services/internal/config"
	"hotelpos-billing-services/internal/counter"
	"hotelpos-billing-services/internal/storage"

	"go.uber.org/zap"
)

// ArchiveLister is the read side of the object store holding reset reports.
type ArchiveLister interface {
	ListReports(ctx context.Context, prefix string) ([]storage.ArchivedObject, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Pinger reports whether a backing connection is still usable.
type Pinger interface {
	Ping() error
}

type Handler struct {
	Logger   *zap.Logger
	Config   config.Config
	Counters *counter.Service
	Archives ArchiveLister
	Broker   Pinger
}
