/*
 * MIT License
 *
 * Copyright (c) 2026 ipsock contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package ipconn

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sabouaram/ipsock/sockerr"
)

// Address is a resolved numeric host plus port, §6's "address string"
// made structured. String renders it back to "<host>/<port>", with the
// slash separating host from port the way §6 specifies; IPv6 hosts
// keep their colon form.
type Address struct {
	IP       net.IP
	Port     uint16
	Zone     string
	Multi    bool // true when IP is a multicast group address
	Loopback bool
}

func (a Address) String() string {
	if a.IP == nil {
		return ""
	}
	host := a.IP.String()
	if a.Zone != "" {
		host += "%" + a.Zone
	}
	return host + "/" + strconv.Itoa(int(a.Port))
}

func (a Address) isV4() bool {
	return a.IP.To4() != nil
}

// resolve turns a nullable host string and a port into an Address.
// Resolution prefers IPv6 and falls back to IPv4, per §4.4; an empty
// host is only valid for a server bind ("any" address), not for a
// client remote.
func resolve(host string, port uint16, forServer bool) (Address, error) {
	if host == "" {
		if !forServer {
			return Address{}, sockerr.New(sockerr.InvalidArgument, "host is required for a client connection")
		}
		return Address{IP: net.IPv6unspecified, Port: port}, nil
	}

	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")

	ipAddr, err := net.ResolveIPAddr("ip6", host)
	if err != nil {
		ipAddr, err = net.ResolveIPAddr("ip4", host)
	}
	if err != nil {
		return Address{}, errors.Wrapf(sockerr.New(sockerr.ResolveFailure, "resolve "+host), "%v", err)
	}

	return Address{
		IP:       ipAddr.IP,
		Port:     port,
		Zone:     ipAddr.Zone,
		Multi:    ipAddr.IP.IsMulticast(),
		Loopback: ipAddr.IP.IsLoopback(),
	}, nil
}
