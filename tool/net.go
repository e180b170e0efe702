package tool

import (
	"net"
)

// GetLocalIP returns the local outbound IPv4 address, determined by opening a
// UDP socket towards a public address. No packet is actually sent.
func GetLocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer func() {
		if err := conn.Close(); err != nil {
			DefaultLogger.Debugf("Failed to close probe socket: %v", err)
		}
	}()
	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return localAddr.IP.String()
}
