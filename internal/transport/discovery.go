package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// DiscoveredHost is one backdoor server found via DNS-SD.
type DiscoveredHost struct {
	Name string
	Host string
	Port int
}

const serviceType = "_sump3-backdoor._tcp"

// DiscoverHosts browses the LAN for the given window for
// acquisition engines announcing themselves over DNS-SD, the same
// mechanism and service-type pattern used elsewhere in this stack for
// announcing a socket service without a host:port on the command
// line.
func DiscoverHosts(ctx context.Context, window time.Duration) ([]DiscoveredHost, error) {
	browseCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var found []DiscoveredHost

	addFn := func(e dnssd.BrowseEntry) {
		for _, ip := range e.IPs {
			found = append(found, DiscoveredHost{
				Name: e.Name,
				Host: ip.String(),
				Port: int(e.Port),
			})

			return
		}
	}

	rmvFn := func(dnssd.BrowseEntry) {}

	if err := dnssd.LookupType(browseCtx, serviceType, addFn, rmvFn); err != nil && browseCtx.Err() == nil {
		return nil, fmt.Errorf("transport: DNS-SD browse failed: %w", err)
	}

	return found, nil
}

// Announce advertises a locally running backdoor server over DNS-SD so
// DiscoverHosts can find it without a configured address.
func Announce(ctx context.Context, name string, port int, logger *log.Logger) error {
	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: serviceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("transport: building DNS-SD service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("transport: building DNS-SD responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return fmt.Errorf("transport: registering DNS-SD service: %w", err)
	}

	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("DNS-SD responder stopped", "err", err)
		}
	}()

	return nil
}
