// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package peer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"
	natpmp "github.com/jackpal/go-nat-pmp"
	"github.com/pion/stun/v2"
)

// Method names a traversal technique, recorded per-remote so a repeat
// dial skips straight to whatever worked last time.
type Method string

const (
	MethodDirect     Method = "direct"
	MethodSTUN       Method = "stun_reflection"
	MethodHolePunch  Method = "udp_hole_punch"
	MethodUPnP       Method = "upnp_port_map"
	MethodNATPMP     Method = "nat_pmp_port_map"
	MethodRelay      Method = "relay"
)

// RendezvousClient exchanges hole-punch candidate addresses with a
// remote peer via a third-party rendezvous point.
type RendezvousClient interface {
	ExchangeCandidates(ctx context.Context, remotePeerID string, local *net.UDPAddr) (*net.UDPAddr, error)
}

// RelayDialer opens a consented relay circuit to remotePeerID when
// every direct traversal method fails.
type RelayDialer interface {
	DialRelayed(ctx context.Context, remotePeerID string) (net.Conn, error)
}

// Traversal runs the NAT traversal ladder from spec.md §4.7: direct
// dial, STUN reflection, UDP hole punching via a rendezvous point,
// UPnP/NAT-PMP port mapping, then consented relay fallback. The first
// method that succeeds for a remote peer is cached and tried first on
// the next connection attempt.
type Traversal struct {
	stunServer string
	rendezvous RendezvousClient
	relay      RelayDialer
	dialTimeout time.Duration

	mu     sync.Mutex
	cached map[string]Method
}

// NewTraversal constructs a Traversal. stunServer is a host:port STUN
// server address (e.g. "stun.l.google.com:19302").
func NewTraversal(stunServer string, rendezvous RendezvousClient, relay RelayDialer) *Traversal {
	return &Traversal{
		stunServer:  stunServer,
		rendezvous:  rendezvous,
		relay:       relay,
		dialTimeout: 5 * time.Second,
		cached:      make(map[string]Method),
	}
}

// Result carries the outcome of a successful traversal attempt.
type Result struct {
	Method Method
	Conn   net.Conn
}

// Connect dials remotePeerID at address, preferring the cached method
// (if any) and otherwise working down the ladder in order.
func (t *Traversal) Connect(ctx context.Context, remotePeerID, address string) (*Result, error) {
	t.mu.Lock()
	cached, ok := t.cached[remotePeerID]
	t.mu.Unlock()

	order := []Method{MethodDirect, MethodSTUN, MethodHolePunch, MethodUPnP, MethodNATPMP, MethodRelay}
	if ok {
		order = append([]Method{cached}, removeMethod(order, cached)...)
	}

	var lastErr error
	for _, m := range order {
		conn, err := t.attempt(ctx, m, remotePeerID, address)
		if err == nil {
			t.mu.Lock()
			t.cached[remotePeerID] = m
			t.mu.Unlock()
			return &Result{Method: m, Conn: conn}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("peer: all NAT traversal methods failed for %s: %w", remotePeerID, lastErr)
}

func removeMethod(order []Method, skip Method) []Method {
	out := make([]Method, 0, len(order))
	for _, m := range order {
		if m != skip {
			out = append(out, m)
		}
	}
	return out
}

func (t *Traversal) attempt(ctx context.Context, m Method, remotePeerID, address string) (net.Conn, error) {
	switch m {
	case MethodDirect:
		d := net.Dialer{Timeout: t.dialTimeout}
		return d.DialContext(ctx, "tcp", address)
	case MethodSTUN:
		return t.stunReflect(ctx, address)
	case MethodHolePunch:
		return t.holePunch(ctx, remotePeerID)
	case MethodUPnP:
		return t.upnpMap(ctx, address)
	case MethodNATPMP:
		return t.natPMPMap(ctx, address)
	case MethodRelay:
		if t.relay == nil {
			return nil, fmt.Errorf("peer: no relay dialer configured")
		}
		return t.relay.DialRelayed(ctx, remotePeerID)
	default:
		return nil, fmt.Errorf("peer: unknown traversal method %q", m)
	}
}

// stunReflect asks a STUN server for our server-reflexive address and
// then makes a plain TCP dial to address; the reflexive address it
// reads is not used for the dial.
func (t *Traversal) stunReflect(ctx context.Context, address string) (net.Conn, error) {
	if t.stunServer == "" {
		return nil, fmt.Errorf("peer: no STUN server configured")
	}
	conn, err := net.Dial("udp4", t.stunServer)
	if err != nil {
		return nil, fmt.Errorf("peer: dial STUN server: %w", err)
	}
	defer conn.Close()

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	if _, err := conn.Write(msg.Raw); err != nil {
		return nil, fmt.Errorf("peer: send STUN binding request: %w", err)
	}

	buf := make([]byte, 1500)
	_ = conn.SetReadDeadline(time.Now().Add(t.dialTimeout))
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("peer: read STUN response: %w", err)
	}

	var reply stun.Message
	reply.Raw = buf[:n]
	if err := reply.Decode(); err != nil {
		return nil, fmt.Errorf("peer: decode STUN response: %w", err)
	}
	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(&reply); err != nil {
		return nil, fmt.Errorf("peer: no XOR-MAPPED-ADDRESS in STUN response: %w", err)
	}

	d := net.Dialer{Timeout: t.dialTimeout}
	return d.DialContext(ctx, "tcp", address)
}

// holePunch exchanges UDP hole-punch candidates through a rendezvous
// point, then dials the reported address directly.
func (t *Traversal) holePunch(ctx context.Context, remotePeerID string) (net.Conn, error) {
	if t.rendezvous == nil {
		return nil, fmt.Errorf("peer: no rendezvous client configured")
	}
	local, err := net.ResolveUDPAddr("udp4", ":0")
	if err != nil {
		return nil, err
	}
	remote, err := t.rendezvous.ExchangeCandidates(ctx, remotePeerID, local)
	if err != nil {
		return nil, fmt.Errorf("peer: exchange hole-punch candidates: %w", err)
	}
	return net.DialUDP("udp4", nil, remote)
}

// upnpMap requests an external port mapping from an IGD on the local
// network so the remote can reach address's port directly afterward.
func (t *Traversal) upnpMap(ctx context.Context, address string) (net.Conn, error) {
	clients, _, err := internetgateway2.NewWANIPConnection1Clients()
	if err != nil || len(clients) == 0 {
		return nil, fmt.Errorf("peer: no UPnP IGD discovered: %w", err)
	}
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	var p uint16
	_, err = fmt.Sscanf(port, "%d", &p)
	if err != nil {
		return nil, err
	}
	localIP, err := localIPv4()
	if err != nil {
		return nil, fmt.Errorf("peer: determine local address for UPnP mapping: %w", err)
	}
	if err := clients[0].AddPortMapping("", p, "TCP", p, localIP, true, "dchat", 0); err != nil {
		return nil, fmt.Errorf("peer: UPnP AddPortMapping: %w", err)
	}
	d := net.Dialer{Timeout: t.dialTimeout}
	return d.DialContext(ctx, "tcp", address)
}

// natPMPMap requests a NAT-PMP mapping from the default gateway.
func (t *Traversal) natPMPMap(ctx context.Context, address string) (net.Conn, error) {
	gw, err := defaultGateway()
	if err != nil {
		return nil, fmt.Errorf("peer: no default gateway for NAT-PMP: %w", err)
	}
	client := natpmp.NewClient(gw)
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return nil, err
	}
	if _, err := client.AddPortMapping("tcp", p, p, 3600); err != nil {
		return nil, fmt.Errorf("peer: NAT-PMP AddPortMapping: %w", err)
	}
	d := net.Dialer{Timeout: t.dialTimeout}
	return d.DialContext(ctx, "tcp", address)
}

func localIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("peer: no usable network interface found")
}

func defaultGateway() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				gw := ipnet.IP.Mask(ipnet.Mask)
				gw[len(gw)-1] |= 1
				return gw, nil
			}
		}
	}
	return nil, fmt.Errorf("peer: no usable network interface found")
}

// CachedMethod reports which traversal method last succeeded for a
// remote peer, if any.
func (t *Traversal) CachedMethod(remotePeerID string) (Method, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.cached[remotePeerID]
	return m, ok
}
