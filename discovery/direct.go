package discovery

import (
	"fmt"
	"strings"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	probing "github.com/prometheus-community/pro-bing"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

// Common description paths and ports, most likely first. Used when multicast
// cannot reach the device (firewalled networks, Docker bridge mode).
var (
	directPaths = []string{
		"/description.xml",
		"/rootDesc.xml",
		"/dmr",
		"/upnpd/description.xml",
		"/AVTransport/ctrl",
	}
	directPorts = []int{8080, 49152, 9197, 49153, 49154, 80}
)

const (
	icmpProbeTimeout = 200 * time.Millisecond
	// Hosts that failed the full matrix are skipped for a while. Device paths
	// can change, so the entry expires rather than sticking forever.
	negativeProbeTTL = 5 * time.Minute
)

var failedDirectProbes = ttlworker.NewCache[string, bool](negativeProbeTTL)

// TryDirectConnection probes a fixed matrix of common DLNA description
// endpoints on a host and returns the first parseable MediaRenderer, or nil.
func TryDirectConnection(host string, timeout time.Duration) *types.Device {
	if failedDirectProbes.Get(host) {
		tool.DefaultLogger.Debugf("Skipping direct connection to %s: failed within the last %s", host, negativeProbeTTL)
		return nil
	}

	tool.DefaultLogger.Infof("Attempting direct connection to %s", host)

	// Reachability hint only: ICMP may be filtered while HTTP works, so a
	// failed ping never skips the matrix.
	if !quickICMPProbe(host, icmpProbeTimeout) {
		tool.DefaultLogger.Debugf("Host %s did not answer ICMP probe, trying description paths anyway", host)
	}

	for _, port := range directPorts {
		for _, path := range directPaths {
			location := fmt.Sprintf("http://%s:%d%s", host, port, path)
			resp, err := tool.HTTPGet(location, timeout)
			if err != nil {
				tool.DefaultLogger.Debugf("Failed to connect to %s: %v", location, err)
				continue
			}
			contentType := strings.ToLower(resp.Header.Get("Content-Type"))
			statusOK := resp.StatusCode == 200
			if err := resp.Body.Close(); err != nil {
				tool.DefaultLogger.Debugf("Failed to close probe body: %v", err)
			}
			if !statusOK || !strings.Contains(contentType, "xml") {
				continue
			}
			if device := FetchDeviceInfo(location); device != nil {
				tool.DefaultLogger.Infof("Found device at %s", location)
				return device
			}
		}
	}

	tool.DefaultLogger.Warnf("Could not connect to device at %s", host)
	failedDirectProbes.Set(host, true)
	return nil
}

// quickICMPProbe sends a single unprivileged echo request.
func quickICMPProbe(host string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
