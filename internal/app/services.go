package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/apiv1"
	"github.com/dokzlo13/hueshim/internal/apiv2"
	"github.com/dokzlo13/hueshim/internal/bridge"
	"github.com/dokzlo13/hueshim/internal/config"
	"github.com/dokzlo13/hueshim/internal/db"
	"github.com/dokzlo13/hueshim/internal/device"
	"github.com/dokzlo13/hueshim/internal/discovery"
	"github.com/dokzlo13/hueshim/internal/entertainment"
	"github.com/dokzlo13/hueshim/internal/eventbus"
	"github.com/dokzlo13/hueshim/internal/hass"
	"github.com/dokzlo13/hueshim/internal/ledger"
	"github.com/dokzlo13/hueshim/internal/server"
)

// Command history older than this is pruned by the janitor.
const ledgerRetention = 30 * 24 * time.Hour

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Bridge state
	Store  *bridge.Store
	Bridge *bridge.Bridge

	// Backend and device layer
	Hass    *hass.Client
	Devices *device.Manager

	// Surfaces
	V1            *apiv1.API
	V2            *apiv2.API
	Entertainment *entertainment.Server
	Server        *server.Server
	SSDP          *discovery.SSDPResponder
	MDNS          *discovery.MDNSAdvertiser
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.Store = bridge.OpenStore(filepath.Join(cfg.Bridge.DataDir, "config.json"))

	identity := bridge.DetectIdentity()

	s.Hass = hass.NewClient(cfg.Hass.URL, cfg.Hass.Token, cfg.Hass.Timeout.Duration(), hass.ReconnectConfig{
		MinBackoff:    cfg.Hass.MinRetryBackoff.Duration(),
		MaxBackoff:    cfg.Hass.MaxRetryBackoff.Duration(),
		Multiplier:    cfg.Hass.RetryMultiplier,
		MaxReconnects: cfg.Hass.MaxReconnects,
	})

	s.Bridge = bridge.New(identity, s.Store, s.Hass,
		cfg.Bridge.HTTPPort, cfg.Bridge.HTTPSPort, cfg.Bridge.UseDefaultPorts)

	s.Devices = device.NewManager(s.Bridge, s.Hass, s.Bus, s.Ledger)
	s.Entertainment = entertainment.New(s.Bridge, s.Hass, s.Devices, s.Bus)

	s.V1 = apiv1.New(s.Bridge, s.Hass, s.Devices, s.Entertainment)
	s.V2 = apiv2.New(s.Bridge, s.Hass, s.Devices, s.Bus)

	certFile := filepath.Join(cfg.Bridge.DataDir, "cert.pem")
	keyFile := filepath.Join(cfg.Bridge.DataDir, "cert_key.pem")
	if err := server.EnsureCertificate(certFile, keyFile, identity); err != nil {
		s.Close()
		return nil, err
	}

	s.Server = server.New(cfg.Bridge.BindAddr, cfg.Bridge.HTTPPort, cfg.Bridge.HTTPSPort,
		certFile, keyFile, s.router())
	s.SSDP = discovery.NewSSDPResponder(identity, s.Bridge.DiscoveryHTTPPort())

	return s, nil
}

func (s *Services) router() http.Handler {
	r := chi.NewRouter()
	s.V1.Mount(r)
	s.V2.Mount(r)
	return r
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs
// (e.g., the backend connection is gone for good).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if err := s.Hass.Connect(ctx); err != nil {
		return err
	}
	go func() {
		if err := s.Hass.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			onFatalError(err)
		}
	}()

	go func() {
		if err := s.Server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			onFatalError(err)
		}
	}()

	go func() {
		if err := s.SSDP.Run(ctx); err != nil {
			log.Error().Err(err).Msg("SSDP responder stopped")
		}
	}()

	mdnsSrv, err := discovery.StartMDNS(s.Bridge.Identity)
	if err != nil {
		log.Warn().Err(err).Msg("mDNS advertising unavailable")
	} else {
		s.MDNS = mdnsSrv
	}

	go s.janitor(ctx)
	return nil
}

// janitor prunes expired command history once a day.
func (s *Services) janitor(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Ledger.DeleteOlderThan(ledgerRetention); err != nil {
				log.Warn().Err(err).Msg("Ledger pruning failed")
			} else if n > 0 {
				log.Debug().Int64("deleted", n).Msg("Pruned command history")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Entertainment != nil {
		s.Entertainment.Stop()
	}
	if s.MDNS != nil {
		s.MDNS.Shutdown()
	}
	if s.V2 != nil {
		s.V2.Close()
	}
	if s.Bridge != nil {
		s.Bridge.Close()
	}
	if s.Hass != nil {
		s.Hass.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
