package config

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// masks matching every address of a family
var entireNetworks = map[string]bool{
	"0.0.0.0/0": true,
	"::/0":      true,
}

// stringToIPnet parses an allowed network. A bare address is turned into
// a single host network of its family.
func stringToIPnet(s string) (*net.IPNet, error) {
	if entireNetworks[s] {
		return nil, fmt.Errorf("suspicious mask specified %q. "+
			"If you want to allow all then just omit `allowed_networks` field", s)
	}
	cidr := s
	if !strings.Contains(cidr, "/") {
		if strings.Contains(cidr, ":") {
			cidr += "/128"
		} else {
			cidr += "/32"
		}
	}
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("wrong network address %q: %w", s, err)
	}
	return ipnet, nil
}

// checkOverflow fails on keys caught by an inline XXX map. Keys are sorted
// so the message does not depend on map order.
func checkOverflow(m map[string]interface{}, ctx string) error {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Errorf("unknown fields in %s: %s", ctx, strings.Join(keys, ", "))
}
