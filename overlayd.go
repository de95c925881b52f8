// Package overlayd wires the Substrate, Forwarder, and Router modules into a
// single running instance, the same role instance.go plays for the teacher's
// mycoria router.
package overlayd

import (
	"fmt"

	"github.com/pathvector/overlayd/config"
	"github.com/pathvector/overlayd/forwarder"
	"github.com/pathvector/overlayd/mgr"
	"github.com/pathvector/overlayd/router"
	"github.com/pathvector/overlayd/substrate"
)

// Instance is one running overlay router: a Substrate bound to a config's
// neighbor list, a Forwarder dispatching between it and the local
// application and routing planes, and a Router maintaining the forwarding
// table over those planes.
type Instance struct {
	*mgr.Group

	version string
	config  *config.Config

	substrate *substrate.Substrate
	forwarder *forwarder.Forwarder
	router    *router.Router
}

// New constructs an Instance from a validated config. static disables the
// substrate's dynamic per-second delay perturbation; debugLvl is the 0-4
// tracing level from the CLI; enFA enables failure-advertisement emission.
func New(version string, c *config.Config, static bool, debugLvl int, enFA bool) *Instance {
	sub := substrate.New(c, static, debugLvl)
	fwd := forwarder.New(c.MyIP, debugLvl, sub)
	rtr := router.New(c, debugLvl, enFA, fwd)

	i := &Instance{
		version:   version,
		config:    c,
		substrate: sub,
		forwarder: fwd,
		router:    rtr,
	}
	i.Group = mgr.NewGroup(sub, fwd, rtr)

	return i
}

// Version returns the version string the instance was built with.
func (i *Instance) Version() string {
	return i.version
}

// Config returns the instance's validated configuration.
func (i *Instance) Config() *config.Config {
	return i.config
}

// Send hands payload to the application-plane ingress, addressed to dest.
func (i *Instance) Send(payload []byte, dest string) error {
	return i.forwarder.Send(payload, dest)
}

// Receive blocks until a payload destined for this router is available.
func (i *Instance) Receive() (payload []byte, src string) {
	return i.forwarder.Receive()
}

// Ready reports whether Receive would return immediately.
func (i *Instance) Ready() bool {
	return i.forwarder.Ready()
}

// Incoming is an alias of Ready, matching the application plane's
// send/receive/ready/incoming naming.
func (i *Instance) Incoming() bool {
	return i.forwarder.Incoming()
}

// FatalErr signals a condition the substrate cannot recover from (a
// datagram from an unrecognized host). The caller should exit the process.
func (i *Instance) FatalErr() <-chan error {
	return i.substrate.FatalErr()
}

// DebugState is a point-in-time export of every module's internal state,
// for the --dump-state CLI flag.
type DebugState struct {
	Version       string                 `yaml:"version"`
	MyIP          string                 `yaml:"myIp"`
	ForwardingTbl []forwarder.TableEntry `yaml:"forwardingTable"`
	Routes        []router.RouteSnapshot `yaml:"routes"`
	Links         []router.LinkSnapshot  `yaml:"links"`
}

// Snapshot collects a DebugState across every module.
func (i *Instance) Snapshot() DebugState {
	return DebugState{
		Version:       i.version,
		MyIP:          i.config.MyIP.String(),
		ForwardingTbl: i.forwarder.Snapshot(),
		Routes:        i.router.Snapshot(),
		Links:         i.router.LinkSnapshots(),
	}
}

// String returns a short human-readable identity line, used in startup logs.
func (i *Instance) String() string {
	return fmt.Sprintf("overlayd %s (%s)", i.version, i.config.MyIP)
}
