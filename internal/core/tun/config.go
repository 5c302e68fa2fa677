package tun

// Request is what the unprivileged side asks the helper daemon for.
type Request struct {
	Enable    bool     `json:"enable"`
	SOCKSPort int      `json:"socks_port"`
	Bypass    []string `json:"bypass"`
}

// DefaultMTU is the default MTU for the TUN device.
const DefaultMTU = 9000

// tunGateway is the address assigned to the TUN device. tun2socks uses
// 198.18.0.0/15 for its virtual network.
const tunGateway = "198.18.0.1"

// tunDNS is the DNS server pointed at while the TUN device is up.
const tunDNS = "198.18.0.2"
