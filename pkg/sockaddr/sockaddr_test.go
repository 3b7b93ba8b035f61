package sockaddr

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskBitsProducesExactLeadingOnes(t *testing.T) {
	v4 := netip.MustParseAddr("0.0.0.0")
	for n := 0; n <= 32; n++ {
		m := MaskBits(v4, n)
		assert.Equal(t, n, countLeadingOnes(m), "n=%d mask=%s", n, m)
	}

	v6 := netip.MustParseAddr("::")
	for _, n := range []int{0, 1, 7, 8, 9, 64, 127, 128} {
		m := MaskBits(v6, n)
		assert.Equal(t, n, countLeadingOnes(m), "n=%d mask=%s", n, m)
	}
}

func TestMaskBitsClampsToFamilyWidth(t *testing.T) {
	v4 := netip.MustParseAddr("0.0.0.0")
	m := MaskBits(v4, 999)
	assert.Equal(t, 32, countLeadingOnes(m))
}

func TestMaskedMatchAfterMaskIsTrue(t *testing.T) {
	addr := netip.MustParseAddr("192.168.5.37")
	mask := MaskBits(addr, 24)
	masked := Mask(addr, mask)
	assert.True(t, MaskedMatch(addr, mask, masked))
}

func TestMaskedMatchFamilyMismatchIsFalse(t *testing.T) {
	v4 := netip.MustParseAddr("192.168.1.1")
	v6 := netip.MustParseAddr("::1")
	assert.False(t, MaskedMatch(v4, v6, v6))
}

func TestParseIPMaskBareAddressIsFullHostMask(t *testing.T) {
	addr, mask, bits, err := ParseIPMask("10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, 32, bits)
	assert.Equal(t, netip.MustParseAddr("10.1.2.3"), addr)
	assert.Equal(t, netip.MustParseAddr("255.255.255.255"), mask)
}

func TestParseIPMaskIntegerPrefix(t *testing.T) {
	addr, _, bits, err := ParseIPMask("10.1.2.3/8")
	require.NoError(t, err)
	assert.Equal(t, 8, bits)
	assert.Equal(t, netip.MustParseAddr("10.0.0.0"), addr)
}

func TestParseIPMaskDottedMask(t *testing.T) {
	addr, _, bits, err := ParseIPMask("10.1.2.3/255.255.0.0")
	require.NoError(t, err)
	assert.Equal(t, 16, bits)
	assert.Equal(t, netip.MustParseAddr("10.1.0.0"), addr)
}

func TestPublicIPClassification(t *testing.T) {
	assert.True(t, PublicIP(netip.MustParseAddr("8.8.8.8")))
	assert.False(t, PublicIP(netip.MustParseAddr("127.0.0.1")))
	assert.False(t, PublicIP(netip.MustParseAddr("::1")))
	assert.False(t, PublicIP(netip.MustParseAddr("10.1.1.1")))
	assert.False(t, PublicIP(netip.MustParseAddr("169.254.1.1")))
}

func TestTrustedReverseProxyScenario(t *testing.T) {
	require.NoError(t, ConfigureTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1/32"}))

	assert.True(t, TrustedReverseProxy(netip.MustParseAddr("10.1.2.3")))
	assert.True(t, TrustedReverseProxy(netip.MustParseAddr("192.168.1.1")))
	assert.False(t, TrustedReverseProxy(netip.MustParseAddr("8.8.8.8")))
}
