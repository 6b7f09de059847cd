package discovery

import (
	"strings"
	"testing"

	"github.com/dokzlo13/hueshim/internal/bridge"
)

func testIdentity() bridge.Identity {
	return bridge.NewIdentity("b6:82:d3:45:ac:29", "192.168.1.10")
}

func TestDescriptionXML(t *testing.T) {
	xml := DescriptionXML(testIdentity(), 8080, "Test Bridge")

	for _, want := range []string{
		"<URLBase>http://192.168.1.10:8080/</URLBase>",
		"<friendlyName>Test Bridge (192.168.1.10)</friendlyName>",
		"<modelName>Philips hue bridge 2015</modelName>",
		"<modelNumber>BSB002</modelNumber>",
		"<serialNumber>b682d345ac29</serialNumber>",
		"<UDN>uuid:2f402f80-da50-11e1-9b23-b682d345ac29</UDN>",
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("description.xml missing %q", want)
		}
	}
}

func TestSSDPResponses(t *testing.T) {
	r := NewSSDPResponder(testIdentity(), 8080)

	if len(r.responses) != 3 {
		t.Fatalf("responses = %d, want one per search target", len(r.responses))
	}

	wantSTs := []string{
		"ST: upnp:rootdevice\r\n",
		"ST: uuid:2f402f80-da50-11e1-9b23-b682d345ac29\r\n",
		"ST: urn:schemas-upnp-org:device:basic:1\r\n",
	}
	for i, resp := range r.responses {
		body := string(resp)
		if !strings.HasPrefix(body, "HTTP/1.1 200 OK\r\n") {
			t.Errorf("response %d missing status line", i)
		}
		if !strings.Contains(body, wantSTs[i]) {
			t.Errorf("response %d missing %q", i, wantSTs[i])
		}
		if !strings.Contains(body, "hue-bridgeid: B682D3FFFE45AC29\r\n") {
			t.Errorf("response %d missing bridge id", i)
		}
		if !strings.Contains(body, "LOCATION: http://192.168.1.10:8080/description.xml\r\n") {
			t.Errorf("response %d missing location", i)
		}
		if !strings.Contains(body, "SERVER: Hue/1.0 UPnP/1.0 IpBridge/1.48.0\r\n") {
			t.Errorf("response %d missing server header", i)
		}
		if !strings.HasSuffix(body, "\r\n\r\n") {
			t.Errorf("response %d missing terminating blank line", i)
		}
	}
}
