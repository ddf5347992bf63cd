// Package discovery advertises the device over mDNS so a host on the
// local network can find it without a preconfigured address, adapted
// from pkg/discovery's zeroconf-backed Advertiser but reduced to the
// single operational-device case this domain needs (no commissioning
// window, no zone/pairing concepts).
package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// ServiceType is the mDNS service type nanoclaw devices advertise under.
const ServiceType = "_nanoclaw._tcp"

// Domain is the mDNS domain.
const Domain = "local"

// Info is what a device advertises about itself.
type Info struct {
	DeviceID string
	Port     int
}

// txtRecords renders Info as TXT record strings.
func txtRecords(info Info) []string {
	return []string{
		fmt.Sprintf("device_id=%s", info.DeviceID),
		"v=1",
	}
}

// Advertiser registers and withdraws a device's mDNS announcement.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// New creates an idle Advertiser.
func New() *Advertiser {
	return &Advertiser{}
}

// Advertise registers info's service, replacing any prior registration.
func (a *Advertiser) Advertise(ctx context.Context, info Info, ifaces []net.Interface) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(info.DeviceID, ServiceType, Domain, info.Port, txtRecords(info), ifaces)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", info.DeviceID, err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement, if any.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
