package discovery

import (
	"encoding/xml"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

const descriptionFetchTimeout = 5 * time.Second

// Device description XML. Field tags carry no namespace on purpose:
// encoding/xml matches by local name then, which covers both the
// urn:schemas-upnp-org:device-1-0 qualified documents and the unqualified
// ones some vendors ship.
type descRoot struct {
	XMLName xml.Name   `xml:"root"`
	Device  descDevice `xml:"device"`
}

type descDevice struct {
	FriendlyName string        `xml:"friendlyName"`
	Manufacturer string        `xml:"manufacturer"`
	ModelName    string        `xml:"modelName"`
	UDN          string        `xml:"UDN"`
	Services     []descService `xml:"serviceList>service"`
	Devices      []descDevice  `xml:"deviceList>device"`
}

type descService struct {
	ServiceType string `xml:"serviceType"`
	ControlURL  string `xml:"controlURL"`
}

// FetchDeviceInfo downloads and parses a device description document.
// Returns nil on any failure, and for descriptions without an AVTransport
// service (MediaServers, which cannot play anything).
func FetchDeviceInfo(location string) *types.Device {
	resp, err := tool.HTTPGet(location, descriptionFetchTimeout)
	if err != nil {
		tool.DefaultLogger.Warnf("Failed to fetch device description from %s: %v", location, err)
		return nil
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Debugf("Failed to close description body: %v", err)
		}
	}()
	if resp.StatusCode != 200 {
		tool.DefaultLogger.Warnf("Device description fetch from %s returned %d", location, resp.StatusCode)
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		tool.DefaultLogger.Warnf("Failed to read device description from %s: %v", location, err)
		return nil
	}

	device, err := ParseDeviceDescription(location, body)
	if err != nil {
		tool.DefaultLogger.Warnf("Failed to parse device description from %s: %v", location, err)
		return nil
	}
	return device
}

// ParseDeviceDescription extracts a Device from description XML. A document
// with no AVTransport service yields (nil, nil): answered the MediaRenderer
// search but cannot render.
func ParseDeviceDescription(location string, body []byte) (*types.Device, error) {
	var root descRoot
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, err
	}

	base, err := url.Parse(location)
	if err != nil {
		return nil, err
	}

	services := collectServices(&root.Device)

	controlURL := findServiceControlURL(services, "AVTransport", base)
	if controlURL == "" {
		tool.DefaultLogger.Debugf("Skipping device %q at %s: no AVTransport service (likely MediaServer)",
			root.Device.FriendlyName, location)
		return nil, nil
	}
	connectionManagerURL := findServiceControlURL(services, "ConnectionManager", base)

	host := base.Hostname()
	port := 80
	if p := base.Port(); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	udn := strings.TrimSpace(root.Device.UDN)
	id := strings.TrimPrefix(udn, "uuid:")
	if id == "" {
		// Rare vendor bug: description without a UDN. Keep the device usable
		// with a generated identifier.
		id = uuid.NewString()
	}

	return &types.Device{
		ID:                   id,
		FriendlyName:         root.Device.FriendlyName,
		Manufacturer:         root.Device.Manufacturer,
		ModelName:            root.Device.ModelName,
		IP:                   host,
		Port:                 port,
		Location:             location,
		ControlURL:           controlURL,
		ConnectionManagerURL: connectionManagerURL,
		UDN:                  udn,
	}, nil
}

// collectServices gathers services from the root device and any embedded
// devices, since some vendors nest the renderer one level down.
func collectServices(device *descDevice) []descService {
	services := append([]descService(nil), device.Services...)
	for i := range device.Devices {
		services = append(services, collectServices(&device.Devices[i])...)
	}
	return services
}

// findServiceControlURL returns the absolute control URL of the first service
// whose type contains the given name, resolving relative paths against the
// description document's URL.
func findServiceControlURL(services []descService, serviceName string, base *url.URL) string {
	for _, svc := range services {
		if !strings.Contains(svc.ServiceType, serviceName) {
			continue
		}
		controlPath := strings.TrimSpace(svc.ControlURL)
		if controlPath == "" {
			continue
		}
		ref, err := url.Parse(controlPath)
		if err != nil {
			tool.DefaultLogger.Debugf("Invalid controlURL %q for %s: %v", controlPath, serviceName, err)
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
