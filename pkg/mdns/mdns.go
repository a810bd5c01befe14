package mdns

import (
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceAPI = "_go2cam._tcp"

// NewServer announces service instance name on port,
// nil ips means all up non-loopback interfaces
func NewServer(name, service string, port int, ips []net.IP, txt []string) (*mdns.Server, error) {
	if len(ips) == 0 {
		ips = LocalIPs()
	}

	// host name must be set manually with `.local.` tail
	zone, err := mdns.NewMDNSService(name, service, "", name+".local.", port, ips, txt)
	if err != nil {
		return nil, err
	}

	return mdns.NewServer(&mdns.Config{Zone: zone})
}

// Discover collects service entries for timeout
func Discover(service string, timeout time.Duration) ([]*mdns.ServiceEntry, error) {
	ch := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(service)
	params.Entries = ch
	params.Timeout = timeout
	params.DisableIPv6 = true

	var entries []*mdns.ServiceEntry
	done := make(chan struct{})
	go func() {
		for entry := range ch {
			entries = append(entries, entry)
		}
		close(done)
	}()

	err := mdns.Query(params)
	close(ch)
	<-done

	return entries, err
}

func LocalIPs() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}

		var addrs []net.Addr
		if addrs, err = iface.Addrs(); err != nil {
			continue
		}
		for _, addr := range addrs {
			switch addr := addr.(type) {
			case *net.IPNet:
				ips = append(ips, addr.IP)
			case *net.IPAddr:
				ips = append(ips, addr.IP)
			}
		}
	}
	return ips
}
