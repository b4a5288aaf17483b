package utils

import (
	"fmt"
	"net"
)

// IPAllowList matches addresses against a fixed set of CIDR blocks. An empty
// list allows every address.
type IPAllowList struct {
	blocks []*net.IPNet
}

func ParseIPAllowList(cidrs []string) (*IPAllowList, error) {
	l := &IPAllowList{}
	for _, cidr := range cidrs {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		l.blocks = append(l.blocks, block)
	}
	return l, nil
}

func (l *IPAllowList) Empty() bool {
	return l == nil || len(l.blocks) == 0
}

// Allowed reports whether ip falls inside one of the blocks.
func (l *IPAllowList) Allowed(ip string) bool {
	if l.Empty() {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, block := range l.blocks {
		if block.Contains(parsed) {
			return true
		}
	}
	return false
}
