package discovery

import (
	"testing"
)

const namespacedDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaRenderer:1</deviceType>
    <friendlyName>Living Room Speaker</friendlyName>
    <manufacturer>Acme</manufacturer>
    <modelName>SoundBox 2</modelName>
    <UDN>uuid:12345678-aaaa-bbbb-cccc-1234567890ab</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <controlURL>/MediaRenderer/AVTransport/Control</controlURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType>
        <controlURL>/MediaRenderer/ConnectionManager/Control</controlURL>
      </service>
    </serviceList>
  </device>
</root>`

const unqualifiedDescription = `<?xml version="1.0"?>
<root>
  <device>
    <friendlyName>Bare Renderer</friendlyName>
    <UDN>uuid:fedcba98</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <controlURL>AVTransport/ctrl</controlURL>
      </service>
    </serviceList>
  </device>
</root>`

const mediaServerDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>NAS</friendlyName>
    <UDN>uuid:server-1</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType>
        <controlURL>/cd/ctrl</controlURL>
      </service>
    </serviceList>
  </device>
</root>`

const nestedDescription = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <friendlyName>Combo Unit</friendlyName>
    <UDN>uuid:combo-1</UDN>
    <deviceList>
      <device>
        <friendlyName>Embedded Renderer</friendlyName>
        <UDN>uuid:combo-1-renderer</UDN>
        <serviceList>
          <service>
            <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
            <controlURL>/embedded/avt</controlURL>
          </service>
        </serviceList>
      </device>
    </deviceList>
  </device>
</root>`

func TestParseDeviceDescriptionNamespaced(t *testing.T) {
	device, err := ParseDeviceDescription("http://192.168.1.50:49152/description.xml", []byte(namespacedDescription))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if device == nil {
		t.Fatal("expected a device")
	}
	if device.FriendlyName != "Living Room Speaker" {
		t.Errorf("FriendlyName = %q", device.FriendlyName)
	}
	if device.ID != "12345678-aaaa-bbbb-cccc-1234567890ab" {
		t.Errorf("ID should strip the uuid: prefix, got %q", device.ID)
	}
	if device.IP != "192.168.1.50" || device.Port != 49152 {
		t.Errorf("endpoint = %s:%d", device.IP, device.Port)
	}
	if device.ControlURL != "http://192.168.1.50:49152/MediaRenderer/AVTransport/Control" {
		t.Errorf("ControlURL = %q", device.ControlURL)
	}
	if device.ConnectionManagerURL != "http://192.168.1.50:49152/MediaRenderer/ConnectionManager/Control" {
		t.Errorf("ConnectionManagerURL = %q", device.ConnectionManagerURL)
	}
}

func TestParseDeviceDescriptionUnqualified(t *testing.T) {
	device, err := ParseDeviceDescription("http://10.0.0.7:8080/desc/root.xml", []byte(unqualifiedDescription))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if device == nil {
		t.Fatal("unqualified documents must parse too")
	}
	// Relative controlURL resolves against the description document's path.
	if device.ControlURL != "http://10.0.0.7:8080/desc/AVTransport/ctrl" {
		t.Errorf("ControlURL = %q", device.ControlURL)
	}
}

func TestParseDeviceDescriptionFiltersMediaServers(t *testing.T) {
	device, err := ParseDeviceDescription("http://192.168.1.60/description.xml", []byte(mediaServerDescription))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if device != nil {
		t.Error("a description without AVTransport must be filtered out")
	}
}

func TestParseDeviceDescriptionEmbeddedDevices(t *testing.T) {
	device, err := ParseDeviceDescription("http://192.168.1.70:80/description.xml", []byte(nestedDescription))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if device == nil {
		t.Fatal("AVTransport in an embedded device must count")
	}
	if device.ControlURL != "http://192.168.1.70:80/embedded/avt" {
		t.Errorf("ControlURL = %q", device.ControlURL)
	}
}

func TestParseDeviceDescriptionInvalidXML(t *testing.T) {
	if _, err := ParseDeviceDescription("http://192.168.1.80/d.xml", []byte("not xml at all <<<")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestParseSSDPHeaders(t *testing.T) {
	response := "HTTP/1.1 200 OK\r\n" +
		"Cache-Control: max-age=1800\r\n" +
		"location: http://192.168.1.50:49152/description.xml\r\n" +
		"ST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n" +
		"USN: uuid:123::urn:schemas-upnp-org:device:MediaRenderer:1\r\n" +
		"\r\n"

	headers := parseSSDPHeaders(response)
	if headers["LOCATION"] != "http://192.168.1.50:49152/description.xml" {
		t.Errorf("LOCATION = %q (casing must not matter)", headers["LOCATION"])
	}
	if headers["CACHE-CONTROL"] != "max-age=1800" {
		t.Errorf("CACHE-CONTROL = %q", headers["CACHE-CONTROL"])
	}
	// USN values contain colons; only the first one separates key and value.
	if headers["USN"] != "uuid:123::urn:schemas-upnp-org:device:MediaRenderer:1" {
		t.Errorf("USN = %q", headers["USN"])
	}
}

func ssdpDatagram(location string) string {
	return "HTTP/1.1 200 OK\r\n" +
		"LOCATION: " + location + "\r\n" +
		"ST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n" +
		"\r\n"
}

func TestAppendLocationDeduplicates(t *testing.T) {
	seen := make(map[string]struct{})
	var locations []string

	first := "http://192.168.1.50:49152/description.xml"
	second := "http://192.168.1.51:49152/description.xml"

	// Devices answer both M-SEARCH transmissions, so the same LOCATION
	// arrives more than once.
	locations = appendLocation(locations, seen, ssdpDatagram(first))
	locations = appendLocation(locations, seen, ssdpDatagram(first))
	locations = appendLocation(locations, seen, ssdpDatagram(second))
	locations = appendLocation(locations, seen, ssdpDatagram(first))

	if len(locations) != 2 {
		t.Fatalf("got %d locations, want 2: %v", len(locations), locations)
	}
	if locations[0] != first || locations[1] != second {
		t.Errorf("locations = %v, order must follow first sighting", locations)
	}
}

func TestAppendLocationSkipsDatagramsWithoutLocation(t *testing.T) {
	seen := make(map[string]struct{})
	datagram := "HTTP/1.1 200 OK\r\nST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n\r\n"

	if got := appendLocation(nil, seen, datagram); len(got) != 0 {
		t.Errorf("datagram without LOCATION produced %v", got)
	}
}
