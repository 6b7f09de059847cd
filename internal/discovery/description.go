package discovery

import (
	"fmt"

	"github.com/dokzlo13/hueshim/internal/bridge"
)

const descriptionTemplate = `<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://%s:%d/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>%s</friendlyName>
<manufacturer>Royal Philips Electronics</manufacturer>
<manufacturerURL>http://www.philips.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2015</modelName>
<modelNumber>BSB002</modelNumber>
<modelURL>http://www.meethue.com</modelURL>
<serialNumber>%s</serialNumber>
<UDN>uuid:%s</UDN>
<presentationURL>index.html</presentationURL>
</device>
</root>
`

// DescriptionXML renders the UPnP device description served at
// /description.xml. The friendly name carries the IP so multiple
// emulated bridges stay distinguishable in Hue apps.
func DescriptionXML(identity bridge.Identity, httpPort int, name string) string {
	friendly := fmt.Sprintf("%s (%s)", name, identity.IPAddr)
	return fmt.Sprintf(descriptionTemplate, identity.IPAddr, httpPort, friendly, identity.Serial, identity.UID)
}
