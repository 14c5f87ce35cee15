package snmp

import (
	"context"
	"net"

	"industrial-bridge/internal/domain"
)

// DetectedHost is one responsive host found by DetectDevices.
type DetectedHost struct {
	Host    string
	SysDescr string
}

// DetectDevices probes sysDescr across every host in cidr with the
// adapter's connect timeout, returning the hosts that answered.
// Supplemented from original_source/snmp_service.py's detect_devices;
// an opt-in operator-triggered helper, not part of the polling
// engine's hot path.
func (a *Adapter) DetectDevices(ctx context.Context, cidr string, community string) ([]DetectedHost, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	var found []DetectedHost
	for candidate := ip.Mask(ipnet.Mask); ipnet.Contains(candidate); incIP(candidate) {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		probe := domain.DeviceSNMP{
			Host:      candidate.String(),
			Port:      161,
			Community: community,
			Version:   domain.SNMPv2c,
		}
		connected, descr, err := a.Connect(ctx, probe)
		if err != nil || !connected {
			continue
		}
		found = append(found, DetectedHost{Host: probe.Host, SysDescr: descr})
	}
	return found, nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}
