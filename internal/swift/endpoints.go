package swift

import (
	"fmt"
	"strings"
)

// Network types a storage endpoint can be reached on.
const (
	NetworkPublic  = "public"
	NetworkPrivate = "private"
)

// Protocols for the auth endpoint.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// Defaults used when an EndpointSelection leaves a field empty.
const (
	DefaultDatacenter = "dal05"
	DefaultNetwork    = NetworkPublic
	DefaultProtocol   = ProtocolHTTPS
)

const (
	publicSuffix  = "objectstorage.softlayer.net"
	privateSuffix = "objectstorage.service.networklayer.com"
	authPath      = "/auth/v1.0"
)

// datacenters is the fixed set of locations with a known auth endpoint.
var datacenters = []string{
	"ams01", // NL - Amsterdam
	"che01", // IN - Chennai
	"dal05", // US - Dallas
	"fra02", // DE - Frankfurt
	"hkg02", // HK - Hong Kong
	"lon02", // GB - London
	"mel01", // AU - Melbourne
	"mex01", // MX - Mexico City
	"mil01", // IT - Milan
	"mon01", // CA - Montreal
	"par01", // FR - Paris
	"sao01", // BR - Sao Paulo
	"sjc01", // US - San Jose
	"sng01", // SG - Singapore
	"syd01", // AU - Sydney
	"tor01", // CA - Toronto
	"tok02", // JP - Tokyo
	"wdc",   // US - Washington DC
}

// endpointTable maps datacenter -> network -> protocol -> auth URL.
// Built once at init and never mutated.
var endpointTable = buildEndpointTable()

func buildEndpointTable() map[string]map[string]map[string]string {
	table := make(map[string]map[string]map[string]string, len(datacenters))

	for _, dc := range datacenters {
		table[dc] = map[string]map[string]string{
			NetworkPublic: {
				ProtocolHTTP:  fmt.Sprintf("http://%s.%s%s", dc, publicSuffix, authPath),
				ProtocolHTTPS: fmt.Sprintf("https://%s.%s%s", dc, publicSuffix, authPath),
			},
			NetworkPrivate: {
				ProtocolHTTP:  fmt.Sprintf("http://%s.%s%s", dc, privateSuffix, authPath),
				ProtocolHTTPS: fmt.Sprintf("https://%s.%s%s", dc, privateSuffix, authPath),
			},
		}
	}

	return table
}

// Datacenters returns the known datacenter names in table order.
func Datacenters() []string {
	out := make([]string, len(datacenters))
	copy(out, datacenters)

	return out
}

// EndpointSelection picks the auth URL. If AuthURL is set it is used
// verbatim and the other fields are ignored.
type EndpointSelection struct {
	AuthURL    string
	Datacenter string
	Network    string // "public" or "private"
	Protocol   string // "http" or "https"
}

// ResolveAuthURL returns the auth URL for the selection.
func (s EndpointSelection) ResolveAuthURL() (string, error) {
	if s.AuthURL != "" {
		return s.AuthURL, nil
	}

	dc := strings.ToLower(valueOrDefault(s.Datacenter, DefaultDatacenter))
	network := strings.ToLower(valueOrDefault(s.Network, DefaultNetwork))
	proto := strings.ToLower(valueOrDefault(s.Protocol, DefaultProtocol))

	byNetwork, ok := endpointTable[dc]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDatacenter, s.Datacenter)
	}

	byProto, ok := byNetwork[network]
	if !ok {
		return "", fmt.Errorf("swift: unknown network %q (want %q or %q)", s.Network, NetworkPublic, NetworkPrivate)
	}

	u, ok := byProto[proto]
	if !ok {
		return "", fmt.Errorf("swift: unknown protocol %q (want %q or %q)", s.Protocol, ProtocolHTTP, ProtocolHTTPS)
	}

	return u, nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
