package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"syndrlinks/src/directors"
	"syndrlinks/src/document"
	"syndrlinks/src/engine"
	"syndrlinks/src/mongostore"
	"syndrlinks/src/settings"
)

// Server owns the open backend and the services built on it.
type Server struct {
	Links   *directors.LinkService
	Backend document.Backend
	logger  *zap.SugaredLogger
	close   func(ctx context.Context) error
}

// NewLogger builds the process logger. Debug uses the development configuration;
// otherwise production JSON logging at warn level, or info when verbose.
func NewLogger(config *settings.Arguments) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error

	if config.Debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stderr"}
		logger, err = z.Build()
	} else {
		z := zap.NewProductionConfig()
		if !config.Verbose {
			z.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		logger, err = z.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Replace standard log with zap
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), nil
}

// InitServer opens the configured backend and declares the configured relations on it.
func InitServer(ctx context.Context, config *settings.Arguments, logger *zap.SugaredLogger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	server := &Server{logger: logger}
	switch config.Backend {
	case settings.BackendMongo:
		store, err := mongostore.Connect(ctx, config.MongoURI, config.Database,
			mongostore.Options{ObjectIDs: config.ObjectIDs}, logger)
		if err != nil {
			return nil, err
		}
		server.Backend = store
		server.close = store.Disconnect
	default:
		db, err := engine.OpenDatabase(config.DataDir, engine.Options{JournalRetentionDays: config.JournalRetentionDays}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		server.Backend = db
		server.close = func(context.Context) error { return db.Close() }
	}

	links, err := directors.NewLinkService(server.Backend, config.Relations, logger)
	if err != nil {
		_ = server.close(ctx)
		return nil, err
	}
	server.Links = links

	logger.Debugf("Server initialized with %s backend and %d relations", config.Backend, len(config.Relations))
	return server, nil
}

// Stop closes the backend and flushes the logger.
func (s *Server) Stop(ctx context.Context) error {
	err := s.close(ctx)
	// Flush any buffered log entries
	_ = s.logger.Sync()
	return err
}
