package discovery

import (
	"fmt"
	"net"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/bridge"
)

// BridgeModelID is the hardware model advertised everywhere the bridge
// identifies itself (mDNS, config JSON, description.xml).
const BridgeModelID = "BSB002"

// MDNSAdvertiser registers the _hue._tcp service.
type MDNSAdvertiser struct {
	server *mdns.Server
}

// StartMDNS announces the bridge over mDNS until Shutdown is called.
// Hue clients discover over port 443 regardless of where the HTTPS
// listener actually binds, so the advertised port is fixed.
func StartMDNS(identity bridge.Identity) (*MDNSAdvertiser, error) {
	instance := fmt.Sprintf("Philips Hue - %s", identity.BridgeID[len(identity.BridgeID)-6:])
	txt := []string{
		"bridgeid=" + identity.BridgeID,
		"modelid=" + BridgeModelID,
	}
	ip := net.ParseIP(identity.IPAddr)
	if ip == nil {
		return nil, fmt.Errorf("invalid bridge ip address: %s", identity.IPAddr)
	}

	service, err := mdns.NewMDNSService(instance, "_hue._tcp", "", "", 443, []net.IP{ip}, txt)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}

	log.Info().Str("component", "mdns").Str("instance", instance).Msg("mDNS discovery broadcast started")
	return &MDNSAdvertiser{server: server}, nil
}

// Shutdown stops the mDNS announcements.
func (a *MDNSAdvertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}
