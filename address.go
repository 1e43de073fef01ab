package esbench

import (
	"net"
	"os"
)

const (
	LoopbackAddress = "127.0.0.1"
)

var (
	// Interfaces checked, in order, when the host name resolves to a
	// loopback address.
	AdvertisedInterfaces = []string{
		"eth0", "eth1", "eth2", "wlan0", "wlan1", "wifi0", "ath0", "ath1", "ppp0",
	}
)

// AddressResolver finds the address this host is reachable at.
// The lookup functions can be replaced in tests.
type AddressResolver struct {
	Hostname       func() (string, error)
	LookupHost     func(host string) ([]string, error)
	InterfaceAddrs func(name string) ([]net.Addr, error)
}

func NewAddressResolver() *AddressResolver {
	return &AddressResolver{
		Hostname:   os.Hostname,
		LookupHost: net.LookupHost,
		InterfaceAddrs: func(name string) ([]net.Addr, error) {
			iface, err := net.InterfaceByName(name)
			if err != nil {
				return nil, err
			}
			return iface.Addrs()
		},
	}
}

func (self *AddressResolver) lookupHostIPv4() string {
	host, err := self.Hostname()
	if err != nil {
		return ""
	}
	addrs, err := self.LookupHost(host)
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return ip.String()
		}
	}
	return ""
}

func (self *AddressResolver) interfaceIPv4(name string) string {
	addrs, err := self.InterfaceAddrs(name)
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		return ip.String()
	}
	return ""
}

// Resolve returns the IPv4 address of the host name unless it is missing or
// loopback, in which case the first non-loopback IPv4 address of
// AdvertisedInterfaces wins. The host name result, or 127.0.0.1, is the
// last resort.
func (self *AddressResolver) Resolve() string {
	hostIP := self.lookupHostIPv4()
	if hostIP != "" && !net.ParseIP(hostIP).IsLoopback() {
		return hostIP
	}
	for _, name := range AdvertisedInterfaces {
		if ip := self.interfaceIPv4(name); ip != "" {
			return ip
		}
	}
	if hostIP != "" {
		return hostIP
	}
	return LoopbackAddress
}

func ResolveAdvertisedAddress() string {
	return NewAddressResolver().Resolve()
}
