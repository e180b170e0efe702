package discovery

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

const (
	ssdpAddr = "239.255.255.250"
	ssdpPort = 1900

	// Search target: MediaRenderer only. Some MediaServers answer anyway and
	// are filtered out after description parsing.
	ssdpSearchTarget = "urn:schemas-upnp-org:device:MediaRenderer:1"

	ssdpSearchMsg = "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + ssdpAddr + ":1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 3\r\n" +
		"ST: " + ssdpSearchTarget + "\r\n" +
		"\r\n"

	maxParallelFetches = 10
	// Budget for the parallel description fetches, independent of and in
	// addition to the UDP listen timeout.
	fetchBudget = 15 * time.Second
)

// DeviceCallback receives each device as its description resolves, enabling
// incremental cache population during a long background scan. Panics inside
// the callback are recovered and logged, never propagated.
type DeviceCallback func(device types.Device)

// Discover sends an SSDP M-SEARCH for MediaRenderer devices and collects
// responses until timeout elapses, then fetches and parses the device
// descriptions on a bounded worker pool. Partial failures are logged and
// skipped; the accumulated list is always returned.
func Discover(timeout time.Duration, callback DeviceCallback) []types.Device {
	tool.DefaultLogger.Infof("Starting SSDP discovery (timeout: %s)", timeout)

	locations := collectLocations(timeout)
	if len(locations) == 0 {
		tool.DefaultLogger.Info("Discovery complete. Found 0 device(s)")
		return nil
	}

	devices := fetchAll(locations, callback)
	tool.DefaultLogger.Infof("Discovery complete. Found %d device(s)", len(devices))
	return devices
}

// collectLocations runs the UDP half of discovery: join the multicast group,
// send M-SEARCH twice, read responses until timeout, dedupe by LOCATION.
func collectLocations(timeout time.Duration) []string {
	group := &net.UDPAddr{IP: net.ParseIP(ssdpAddr), Port: ssdpPort}

	// ListenMulticastUDP binds to the SSDP port and joins the group, which is
	// required to receive replies inside containerized network namespaces.
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		tool.DefaultLogger.Errorf("SSDP discovery failed to open multicast socket: %v", err)
		return nil
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Debugf("Failed to close SSDP socket: %v", err)
		}
	}()
	if err := conn.SetReadBuffer(1024 * 64); err != nil {
		tool.DefaultLogger.Debugf("Failed to set SSDP read buffer: %v", err)
	}

	// Send twice with a short gap for reliability; SSDP is fire-and-forget UDP.
	for i := 0; i < 2; i++ {
		if _, err := conn.WriteToUDP([]byte(ssdpSearchMsg), group); err != nil {
			tool.DefaultLogger.Errorf("Failed to send M-SEARCH (attempt %d): %v", i+1, err)
		}
		if i == 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set SSDP read deadline: %v", err)
		return nil
	}

	seen := make(map[string]struct{})
	var locations []string
	buf := make([]byte, 65507)
	responses := 0

	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				tool.DefaultLogger.Debugf("Discovery timeout reached after %d response(s)", responses)
				break
			}
			tool.DefaultLogger.Debugf("Error reading SSDP response: %v", err)
			continue
		}
		responses++

		before := len(locations)
		locations = appendLocation(locations, seen, string(buf[:n]))
		if len(locations) > before {
			tool.DefaultLogger.Infof("Found device at %s (from %s)", locations[len(locations)-1], src.IP)
		}
	}

	return locations
}

// appendLocation extracts the LOCATION header from one SSDP datagram and
// accumulates it. Datagrams without a LOCATION and locations already seen are
// dropped: devices answer every M-SEARCH retransmission, so duplicates are
// the normal case.
func appendLocation(locations []string, seen map[string]struct{}, datagram string) []string {
	location := parseSSDPHeaders(datagram)["LOCATION"]
	if location == "" {
		return locations
	}
	if _, dup := seen[location]; dup {
		return locations
	}
	seen[location] = struct{}{}
	return append(locations, location)
}

// parseSSDPHeaders parses the header block of an SSDP datagram. Keys are
// uppercased since vendors disagree on casing.
func parseSSDPHeaders(response string) map[string]string {
	headers := make(map[string]string)
	lines := strings.Split(response, "\r\n")
	for _, line := range lines[1:] { // skip status line
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return headers
}

// fetchAll resolves device descriptions on a bounded worker pool. The overall
// budget caps the wait even when individual fetches hang.
func fetchAll(locations []string, callback DeviceCallback) []types.Device {
	tool.DefaultLogger.Debugf("Fetching device info for %d location(s) in parallel", len(locations))

	results := make(chan *types.Device, len(locations))
	sem := make(chan struct{}, maxParallelFetches)
	var wg sync.WaitGroup

	for _, loc := range locations {
		wg.Add(1)
		go func(location string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- FetchDeviceInfo(location)
		}(loc)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var devices []types.Device
	budget := time.NewTimer(fetchBudget)
	defer budget.Stop()

	for {
		select {
		case dev, ok := <-results:
			if !ok {
				return devices
			}
			if dev == nil {
				continue
			}
			devices = append(devices, *dev)
			tool.DefaultLogger.Infof("Discovered device: %s (%s)", dev.FriendlyName, dev.IP)
			invokeCallback(callback, *dev)
		case <-budget.C:
			tool.DefaultLogger.Warnf("Description fetch budget exceeded, returning %d device(s)", len(devices))
			return devices
		}
	}
}

func invokeCallback(callback DeviceCallback, device types.Device) {
	if callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			tool.DefaultLogger.Errorf("Device callback failed: %v", r)
		}
	}()
	callback(device)
}
