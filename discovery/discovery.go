// Package discovery browses for CSWP servers advertised over mDNS,
// adapted from the reference IIOD client's mDNS browser.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// serviceType is the mDNS service CSWP servers advertise under.
const serviceType = "_cswp._tcp"

// Server describes one discovered CSWP server.
type Server struct {
	Instance  string // advertised name, e.g. "cswp on board-7"
	Hostname  string // DNS hostname, e.g. "board-7.local."
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Browse performs a blocking mDNS browse for CSWP servers on the local
// network, returning deduplicated entries once timeout elapses.
func Browse(timeout time.Duration) ([]Server, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(map[string]Server)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					close(done)
					return
				}
				if e == nil {
					continue
				}
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)
				key := fmt.Sprintf("%s|%d", e.HostName, e.Port)
				results[key] = Server{
					Instance:  cleanInstance(e.Instance),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
					TXT:       append([]string{}, e.Text...),
				}
			case <-ctx.Done():
				close(done)
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, serviceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}
	<-done

	out := make([]Server, 0, len(results))
	for _, s := range results {
		out = append(out, s)
	}
	return out, nil
}

// cleanInstance undoes mDNS escaping of spaces in instance names.
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
