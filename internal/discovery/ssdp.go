// Package discovery makes the bridge findable on the local network the
// way a real Hue bridge is: SSDP responses on the UPnP multicast group
// plus an mDNS service registration.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
)

const (
	ssdpMulticastAddr = "239.255.255.250:1900"
	ssdpPollInterval  = 2 * time.Second
)

// Hue clients match on the SERVER and hue-bridgeid headers; responses
// must end with a blank line.
const ssdpResponseTemplate = "HTTP/1.1 200 OK\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"EXT:\r\n" +
	"CACHE-CONTROL: max-age=100\r\n" +
	"LOCATION: http://%s:%d/description.xml\r\n" +
	"SERVER: Hue/1.0 UPnP/1.0 IpBridge/1.48.0\r\n" +
	"hue-bridgeid: %s\r\n" +
	"ST: %s\r\n" +
	"USN: uuid:%s\r\n" +
	"\r\n"

// SSDPResponder answers M-SEARCH probes on the UPnP multicast group.
type SSDPResponder struct {
	identity bridge.Identity
	port     int
	log      zerolog.Logger

	responses [][]byte
}

// NewSSDPResponder builds a responder advertising the given HTTP port.
func NewSSDPResponder(identity bridge.Identity, httpPort int) *SSDPResponder {
	r := &SSDPResponder{
		identity: identity,
		port:     httpPort,
		log:      log.With().Str("component", "ssdp").Logger(),
	}
	for _, st := range []string{
		"upnp:rootdevice",
		"uuid:" + identity.UID,
		"urn:schemas-upnp-org:device:basic:1",
	} {
		resp := fmt.Sprintf(ssdpResponseTemplate, identity.IPAddr, httpPort, identity.BridgeID, st, identity.UID)
		r.responses = append(r.responses, []byte(resp))
	}
	return r
}

// Run listens for M-SEARCH probes until the context is cancelled. The
// read deadline doubles as the shutdown poll interval.
func (r *SSDPResponder) Run(ctx context.Context) error {
	group, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return fmt.Errorf("resolve ssdp multicast address: %w", err)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return fmt.Errorf("join ssdp multicast group: %w", err)
	}
	defer conn.Close()
	_ = conn.SetReadBuffer(1024)

	r.log.Debug().Msg("SSDP responder listening")
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("SSDP responder shutting down")
			return nil
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(ssdpPollInterval))
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				r.log.Info().Msg("SSDP responder shutting down")
				return nil
			}
			r.log.Error().Err(err).Msg("SSDP socket error")
			continue
		}

		if !strings.Contains(string(buf[:n]), "M-SEARCH") {
			continue
		}
		r.respond(src)
	}
}

func (r *SSDPResponder) respond(dst *net.UDPAddr) {
	out, err := net.DialUDP("udp4", nil, dst)
	if err != nil {
		r.log.Error().Err(err).Stringer("dst", dst).Msg("failed to open SSDP response socket")
		return
	}
	defer out.Close()
	for _, resp := range r.responses {
		if _, err := out.Write(resp); err != nil {
			r.log.Error().Err(err).Stringer("dst", dst).Msg("failed to send SSDP response")
			return
		}
	}
	r.log.Debug().Stringer("dst", dst).Msg("served SSDP discovery info")
}
