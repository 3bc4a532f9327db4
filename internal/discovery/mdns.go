package discovery

import (
	"log"
	"net"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Announce publishes the hub's API name on the LAN so phone apps can find
// it without relying on platform zeroconf resolution.
func Announce(localName string) {
	addr4, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		log.Println("DISCOVERY: failed to resolve UDP4 address:", err)
		return
	}

	addr6, err := net.ResolveUDPAddr("udp6", mdns.DefaultAddressIPv6)
	if err != nil {
		log.Println("DISCOVERY: failed to resolve UDP6 address:", err)
		return
	}

	l4, err := net.ListenUDP("udp4", addr4)
	if err != nil {
		log.Println("DISCOVERY: failed to listen on UDP4:", err)
		return
	}

	l6, err := net.ListenUDP("udp6", addr6)
	if err != nil {
		log.Println("DISCOVERY: failed to listen on UDP6:", err)
		return
	}

	_, err = mdns.Server(ipv4.NewPacketConn(l4), ipv6.NewPacketConn(l6), &mdns.Config{
		LocalNames: []string{localName},
	})
	if err != nil {
		log.Println("DISCOVERY: failed to start mDNS server:", err)
		return
	}
	log.Printf("DISCOVERY: announcing %s", localName)
}
