package wisun

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
)

// AddressResolver turns the coordinator's 64-bit MAC address into
// the IPv6 address used for joining and sending datagrams.
type AddressResolver interface {
	Resolve(session Session, macAddress string) (string, error)
}

func ResolverByName(name string) (AddressResolver, error) {
	switch name {
	case "", "module":
		return ModuleResolver{}, nil
	case "link_local":
		return LinkLocalResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown address resolver %q", name)
	}
}

// ModuleResolver asks the radio module with SKLL64.
type ModuleResolver struct{}

func (ModuleResolver) Resolve(session Session, macAddress string) (string, error) {
	if err := session.SendCommand("SKLL64 " + macAddress); err != nil {
		return "", err
	}

	// SKLL64 answers with the bare address, no OK follows.
	for i := 0; i < port_reader.MaxLines; i++ {
		line, err := session.ReadLine()
		if err != nil {
			return "", err
		}
		if line != "" {
			return string(line), nil
		}
	}
	return "", &port_reader.CommandError{Command: "SKLL64", Err: port_reader.ErrLineBudgetExceeded}
}

// LinkLocalResolver expands the MAC address locally into an EUI-64
// based link-local address: fe80::/64 with the universal/local bit flipped.
type LinkLocalResolver struct{}

func (LinkLocalResolver) Resolve(_ Session, macAddress string) (string, error) {
	if len(macAddress) != 16 {
		return "", fmt.Errorf("mac address %q: want 16 hex digits", macAddress)
	}
	mac, err := strconv.ParseUint(macAddress, 16, 64)
	if err != nil {
		return "", fmt.Errorf("mac address %q: %w", macAddress, err)
	}

	var addr [16]byte
	binary.BigEndian.PutUint64(addr[0:8], 0xFE80_0000_0000_0000)
	binary.BigEndian.PutUint64(addr[8:16], mac^0x0200_0000_0000_0000)
	return FormatAddress(netip.AddrFrom16(addr)), nil
}

// FormatAddress writes all eight groups zero padded in upper case,
// the only form the module accepts.
func FormatAddress(addr netip.Addr) string {
	b := addr.As16()
	groups := make([]string, 8)
	for i := range groups {
		groups[i] = fmt.Sprintf("%04X", binary.BigEndian.Uint16(b[i*2:]))
	}
	return strings.Join(groups, ":")
}
