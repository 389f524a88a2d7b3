// Copyright 2025 Green Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package endpoints resolves service endpoints from an endpoint prefix and
// region, honoring per-client overrides, FIPS and dualstack variants, and
// the non-commercial partitions.
package endpoints

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is a resolved network target plus the region used in the
// signing scope.
type Endpoint struct {
	Scheme        string
	Host          string
	Port          int
	SigningRegion string
}

// Options tunes resolution.
type Options struct {
	// Override bypasses construction entirely: a URL ("https://host:port")
	// or bare "host[:port]" used verbatim.
	Override string

	// FIPS selects the FIPS variant of the service hostname.
	FIPS bool

	// DualStack selects the dualstack (IPv4+IPv6) variant.
	DualStack bool
}

// partition describes one hostname suffix domain.
type partition struct {
	id              string
	dnsSuffix       string
	dualStackSuffix string
	regionPrefixes  []string
	defaultRegion   string
}

// Partition table ordered most-specific first; the aws partition is the
// fallback for unrecognized regions.
var partitions = []partition{
	{
		id:              "aws-iso-b",
		dnsSuffix:       "sc2s.sgov.gov",
		dualStackSuffix: "sc2s.sgov.gov",
		regionPrefixes:  []string{"us-isob-"},
		defaultRegion:   "us-isob-east-1",
	},
	{
		id:              "aws-iso",
		dnsSuffix:       "c2s.ic.gov",
		dualStackSuffix: "c2s.ic.gov",
		regionPrefixes:  []string{"us-iso-"},
		defaultRegion:   "us-iso-east-1",
	},
	{
		id:              "aws-us-gov",
		dnsSuffix:       "amazonaws.com",
		dualStackSuffix: "api.aws",
		regionPrefixes:  []string{"us-gov-"},
		defaultRegion:   "us-gov-west-1",
	},
	{
		id:              "aws-cn",
		dnsSuffix:       "amazonaws.com.cn",
		dualStackSuffix: "api.amazonwebservices.com.cn",
		regionPrefixes:  []string{"cn-"},
		defaultRegion:   "cn-north-1",
	},
	{
		id:              "aws",
		dnsSuffix:       "amazonaws.com",
		dualStackSuffix: "api.aws",
		regionPrefixes:  nil,
		defaultRegion:   "us-east-1",
	},
}

// NoKnownEndpointError reports that no endpoint could be constructed.
type NoKnownEndpointError struct {
	Service string
	Region  string
	Reason  string
}

func (e *NoKnownEndpointError) Error() string {
	return fmt.Sprintf("no known endpoint for service %q in region %q: %s", e.Service, e.Region, e.Reason)
}

// Resolve builds the endpoint for a service prefix in a region. An
// override in opts wins over everything; FIPS and dualstack variants apply
// to constructed hostnames only.
func Resolve(servicePrefix, region string, opts Options) (Endpoint, error) {
	if opts.Override != "" {
		return parseOverride(opts.Override, region)
	}
	if servicePrefix == "" {
		return Endpoint{}, &NoKnownEndpointError{Service: servicePrefix, Region: region, Reason: "empty endpoint prefix"}
	}
	if region == "" {
		return Endpoint{}, &NoKnownEndpointError{Service: servicePrefix, Region: region, Reason: "no region configured"}
	}

	p := partitionFor(region)
	host := servicePrefix
	if opts.FIPS {
		host += "-fips"
	}
	suffix := p.dnsSuffix
	if opts.DualStack {
		suffix = p.dualStackSuffix
	}
	host = host + "." + region + "." + suffix

	return Endpoint{Scheme: "https", Host: host, Port: 443, SigningRegion: region}, nil
}

func partitionFor(region string) partition {
	for _, p := range partitions {
		for _, prefix := range p.regionPrefixes {
			if strings.HasPrefix(region, prefix) {
				return p
			}
		}
	}
	return partitions[len(partitions)-1]
}

// parseOverride accepts "https://host:port", "http://host", or a bare
// "host[:port]".
func parseOverride(override, region string) (Endpoint, error) {
	raw := override
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return Endpoint{}, &NoKnownEndpointError{Region: region, Reason: fmt.Sprintf("invalid endpoint override %q", override)}
	}

	ep := Endpoint{Scheme: u.Scheme, Host: u.Hostname(), SigningRegion: region}
	switch {
	case u.Port() != "":
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return Endpoint{}, &NoKnownEndpointError{Region: region, Reason: fmt.Sprintf("invalid port in override %q", override)}
		}
		ep.Port = port
	case ep.Scheme == "http":
		ep.Port = 80
	default:
		ep.Port = 443
	}
	return ep, nil
}

// ApplyHostPrefix prepends an expanded host prefix to an endpoint host.
// Every label the prefix contributes must stay a valid DNS label.
func ApplyHostPrefix(ep Endpoint, prefix string) (Endpoint, error) {
	if prefix == "" {
		return ep, nil
	}
	host := prefix + ep.Host
	for _, label := range strings.Split(host, ".") {
		if !validDNSLabel(label) {
			return Endpoint{}, fmt.Errorf("host prefix %q produces invalid hostname %q", prefix, host)
		}
	}
	ep.Host = host
	return ep, nil
}

func validDNSLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' && i != 0 && i != len(label)-1:
		default:
			return false
		}
	}
	return true
}
