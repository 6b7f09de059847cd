package bridge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

// FallbackMAC is used when no usable hardware address can be detected.
// Running with it means the bridge id is not unique on the network, so
// it is logged loudly, but it is a degradation rather than an error.
const FallbackMAC = "b6:82:d3:45:ac:29"

// Identity holds the derived identity of the emulated bridge.
// All fields are computed once at startup and never change.
type Identity struct {
	MAC      string // colon-separated hex, lower case
	BridgeID string // upper(mac[0:6] + "FFFE" + mac[6:12])
	Serial   string // lower(mac without colons)
	UID      string // "2f402f80-da50-11e1-9b23-" + serial
	IPAddr   string // detected listen address, used in discovery payloads
}

// NewIdentity derives bridge identity from a MAC address.
func NewIdentity(mac, ipAddr string) Identity {
	macStr := strings.ReplaceAll(mac, ":", "")
	return Identity{
		MAC:      mac,
		BridgeID: strings.ToUpper(macStr[:6] + "FFFE" + macStr[6:]),
		Serial:   strings.ToLower(macStr),
		UID:      "2f402f80-da50-11e1-9b23-" + strings.ToLower(macStr),
		IPAddr:   ipAddr,
	}
}

// DetectIdentity determines the local IP and MAC and derives the bridge identity.
func DetectIdentity() Identity {
	ip := LocalIP()
	mac := detectMAC(ip)
	if mac == "" {
		log.Warn().Str("fallback_mac", FallbackMAC).Msg("No hardware address detected, using fallback MAC")
		mac = FallbackMAC
	}
	id := NewIdentity(mac, ip)
	log.Info().Str("ip", ip).Str("bridge_id", id.BridgeID).Msg("Bridge identity derived")
	return id
}

// LocalIP tries to determine the primary local IP address of the machine.
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// detectMAC returns the hardware address of the interface carrying the
// given IP, or of the first non-loopback interface with an address.
func detectMAC(ip string) string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	var fallback string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) < 6 {
			continue
		}
		hw := iface.HardwareAddr.String()
		if fallback == "" {
			fallback = hw
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.String() == ip {
				return hw
			}
		}
	}
	return fallback
}

// UniqueID derives a synthetic zigbee-style address from an entity id.
// It depends only on the entity id, so repeated calls are byte-equal.
func UniqueID(entityID string) string {
	sum := md5.Sum([]byte(entityID))
	h := hex.EncodeToString(sum[:])
	return fmt.Sprintf("00:%s:%s:%s:%s:%s:%s:%s-%s",
		h[0:2], h[2:4], h[4:6], h[6:8], h[8:10], h[10:12], h[12:14], h[14:16])
}
