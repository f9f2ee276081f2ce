// Package network provides the demo consumer client and LAN discovery of
// router hosts.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// ServiceName identifies a router host in its /health response.
const ServiceName = "inputrouter"

// Health is the body of GET /health.
type Health struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Connected bool   `json:"connected"`
}

// DiscoveredHost represents a router host found on the network
type DiscoveredHost struct {
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Connected bool   `json:"connected"`
}

// Addr returns host:port
func (h DiscoveredHost) Addr() string {
	return net.JoinHostPort(h.IP, fmt.Sprint(h.Port))
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// ScanLAN scans the local /24 for router hosts. Hosts that are free come
// first.
func ScanLAN(port int) ([]DiscoveredHost, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}

	parts := strings.Split(localIP, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", localIP)
	}
	subnet := strings.Join(parts[:3], ".")

	var hosts []DiscoveredHost
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= 254; i++ {
		wg.Add(1)
		go func(hostNum int) {
			defer wg.Done()

			ip := fmt.Sprintf("%s.%d", subnet, hostNum)
			if host, ok := ProbeHost(ip, port); ok {
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Connected != hosts[j].Connected {
			return !hosts[i].Connected
		}
		return hosts[i].IP < hosts[j].IP
	})
	return hosts, nil
}

// ProbeHost checks whether ip:port answers /health as a router host.
func ProbeHost(ip string, port int) (DiscoveredHost, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	healthURL := fmt.Sprintf("http://%s/health", net.JoinHostPort(ip, fmt.Sprint(port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return DiscoveredHost{}, false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return DiscoveredHost{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DiscoveredHost{}, false
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Service != ServiceName {
		return DiscoveredHost{}, false
	}
	return DiscoveredHost{IP: ip, Port: port, Connected: health.Connected}, true
}

// GetLocalIPs returns all available local IPv4 addresses
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
