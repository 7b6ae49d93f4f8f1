package wisun

import (
	"net/netip"
	"testing"

	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader/porttest"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Addresses as reported by SKLL64 on real modules.
var linkLocalFixtures = []struct {
	mac  string
	addr string
}{
	{"001D129012345678", "FE80:0000:0000:0000:021D:1290:1234:5678"},
	{"0013A20040B5F1C3", "FE80:0000:0000:0000:0213:A200:40B5:F1C3"},
	{"021D129012345678", "FE80:0000:0000:0000:001D:1290:1234:5678"},
	{"C0F945FFFE0A1B2C", "FE80:0000:0000:0000:C2F9:45FF:FE0A:1B2C"},
}

func TestLinkLocalResolverMatchesModule(t *testing.T) {
	logger, _ := test.NewNullLogger()

	for _, fx := range linkLocalFixtures {
		t.Run(fx.mac, func(t *testing.T) {
			local, err := LinkLocalResolver{}.Resolve(nil, fx.mac)
			require.NoError(t, err)
			assert.Equal(t, fx.addr, local)

			port := porttest.New(fx.addr)
			session := port_reader.NewSession(port, logger)
			defer session.Close()

			remote, err := ModuleResolver{}.Resolve(session, fx.mac)
			require.NoError(t, err)
			assert.Equal(t, local, remote)
			assert.Equal(t, []string{"SKLL64 " + fx.mac}, port.Commands())
		})
	}
}

func TestLinkLocalResolverRejectsBadMAC(t *testing.T) {
	for _, mac := range []string{"", "001D1290", "001D12901234567G", "001D1290123456789A"} {
		_, err := LinkLocalResolver{}.Resolve(nil, mac)
		assert.Error(t, err, mac)
	}
}

func TestFormatAddress(t *testing.T) {
	addr := netip.MustParseAddr("fe80::21d:1290:3:c890")
	assert.Equal(t, porttest.LocalAddr, FormatAddress(addr))
}

func TestResolverByName(t *testing.T) {
	r, err := ResolverByName("module")
	require.NoError(t, err)
	assert.IsType(t, ModuleResolver{}, r)

	r, err = ResolverByName("link_local")
	require.NoError(t, err)
	assert.IsType(t, LinkLocalResolver{}, r)

	_, err = ResolverByName("dns")
	assert.Error(t, err)
}
