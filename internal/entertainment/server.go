package entertainment

import (
	"context"
	"encoding/hex"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
	"github.com/dokzlo13/hueshim/internal/device"
	"github.com/dokzlo13/hueshim/internal/eventbus"
	"github.com/dokzlo13/hueshim/internal/hass"
)

const (
	// StreamPort is the DTLS port Hue clients stream to.
	StreamPort = 2100

	// ActiveSensor is flipped in Home Assistant while a session runs,
	// so automations can react to streaming starting or stopping.
	ActiveSensor = "binary_sensor.emulated_hue_entertainment_active"

	handshakeTimeout = 30 * time.Second
)

// Server accepts DTLS-PSK streaming sessions and translates frames
// into light commands. One session runs at a time.
type Server struct {
	br      *bridge.Bridge
	hass    *hass.Client
	devices *device.Manager
	bus     *eventbus.Bus
	log     zerolog.Logger

	mu      sync.Mutex
	session *session
}

type session struct {
	groupID string
	cancel  context.CancelFunc
	ln      net.Listener
	done    chan struct{}
}

func New(br *bridge.Bridge, hassClient *hass.Client, devices *device.Manager, bus *eventbus.Bus) *Server {
	return &Server{
		br:      br,
		hass:    hassClient,
		devices: devices,
		bus:     bus,
		log:     log.With().Str("component", "entertainment").Logger(),
	}
}

// Start opens the DTLS listener for a streaming session. An already
// running session is stopped first.
func (s *Server) Start(groupID string, groupConf map[string]any, user bridge.User) {
	s.Stop()

	psk, err := pskBytes(user.ClientKey)
	if err != nil {
		s.log.Error().Err(err).Str("username", user.Username).Msg("invalid clientkey, cannot start streaming")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	config := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint:      []byte(user.Username),
		CipherSuites:         []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		ExtendedMasterSecret: dtls.RequireExtendedMasterSecret,
		ConnectContextMaker: func() (context.Context, func()) {
			return context.WithTimeout(ctx, handshakeTimeout)
		},
	}
	ln, err := dtls.Listen("udp", &net.UDPAddr{IP: net.IPv4zero, Port: StreamPort}, config)
	if err != nil {
		cancel()
		s.log.Error().Err(err).Int("port", StreamPort).Msg("cannot listen for streaming session")
		return
	}

	sess := &session{groupID: groupID, cancel: cancel, ln: ln, done: make(chan struct{})}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.devices.SetEntertainmentActive(true)
	groupName, _ := groupConf["name"].(string)
	if err := s.hass.SetState(ctx, ActiveSensor, "on", map[string]any{"room": groupName}); err != nil {
		s.log.Warn().Err(err).Msg("cannot update entertainment sensor")
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeEntertainment,
			Data: map[string]any{"active": true, "group_id": groupID},
		})
	}
	s.log.Info().Str("group_id", groupID).Int("port", StreamPort).Msg("streaming session started")

	go s.serve(ctx, sess)
}

// Stop ends the current session, if any, and restores observed state.
func (s *Server) Stop() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return
	}

	sess.cancel()
	sess.ln.Close()
	<-sess.done

	s.devices.SetEntertainmentActive(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.hass.SetState(ctx, ActiveSensor, "off", nil); err != nil {
		s.log.Warn().Err(err).Msg("cannot update entertainment sensor")
	}
	s.devices.ForceRefreshAll(ctx)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeEntertainment,
			Data: map[string]any{"active": false, "group_id": sess.groupID},
		})
	}
	s.log.Info().Str("group_id", sess.groupID).Msg("streaming session stopped")
}

// Active reports whether a streaming session is running.
func (s *Server) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

func (s *Server) serve(ctx context.Context, sess *session) {
	defer close(sess.done)
	for {
		conn, err := sess.ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error().Err(err).Msg("streaming accept failed")
			}
			return
		}
		s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("streaming client connected")
		go s.readLoop(ctx, conn)
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 0, maxFrameSize*2)
	chunk := make([]byte, maxFrameSize)
	for ctx.Err() == nil {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, err := conn.Read(chunk)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			return
		}
		// Clients stream 25 to 50 packets per second. Keep at most
		// two packets of leftovers to bound the buffer.
		if len(buf) > maxFrameSize*2 {
			buf = buf[len(buf)-maxFrameSize*2:]
		}
		buf = append(buf, chunk[:n]...)

		frames, rest := SplitFrames(buf)
		buf = append(buf[:0], rest...)
		for _, pkt := range frames {
			frame, err := ParseFrame(pkt)
			if err != nil {
				if !errors.Is(err, errShortFrame) {
					s.log.Debug().Err(err).Msg("dropping malformed frame")
				}
				continue
			}
			for _, rec := range frame.Records {
				s.applyRecord(ctx, rec)
			}
		}
	}
}

// applyRecord forwards one decoded light record as a regular command.
// Throttling in the device layer keeps the rate sane for the backend.
func (s *Server) applyRecord(ctx context.Context, rec Record) {
	lightID := strconv.Itoa(int(rec.LightID))
	entityID, err := s.br.EntityIDForLight(lightID)
	if err != nil {
		return
	}
	dev, err := s.devices.Get(ctx, entityID)
	if err != nil {
		return
	}
	cmd := dev.NewCommand("entertainment").SetPowerState(true)
	if rec.Space == ColorSpaceRGB {
		cmd.SetRGB(rec.R, rec.G, rec.B)
	} else {
		cmd.SetXY(rec.X, rec.Y)
	}
	cmd.SetBrightness(rec.Brightness)
	cmd.SetTransitionMS(0, true)
	if err := cmd.Execute(ctx); err != nil {
		s.log.Debug().Err(err).Str("entity_id", entityID).Msg("streaming command failed")
	}
}

// pskBytes decodes the stored clientkey. Keys are minted as 32 hex
// chars; anything else is used verbatim.
func pskBytes(clientKey string) ([]byte, error) {
	if clientKey == "" {
		return nil, errors.New("entertainment: empty clientkey")
	}
	if decoded, err := hex.DecodeString(clientKey); err == nil {
		return decoded, nil
	}
	return []byte(clientKey), nil
}
