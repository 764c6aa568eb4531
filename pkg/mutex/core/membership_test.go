package core_test

import (
	"testing"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/core"
	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/directory"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

func newMembership(t *testing.T, dir directory.Directory, id types.PeerId, conf *types.Configuration) *core.Membership {
	t.Helper()
	log := definition.NewDefaultLogger()
	identity := core.PeerIdentity{ID: id, Endpoint: "mem://" + string(id)}
	return core.NewMembership(identity, dir, conf, log)
}

func TestMembership_DiscoverSkipsSelf(t *testing.T) {
	dir := directory.NewInMemoryDirectory()
	conf := types.DefaultConfiguration("a")
	_ = dir.Register(conf.DirectoryName("a"), "mem://a")
	_ = dir.Register(conf.DirectoryName("b"), "mem://b")

	m := newMembership(t, dir, "a", conf)
	m.Discover()

	live := m.LivePeers()
	if len(live) != 1 || live[0] != "b" {
		t.Fatalf("expected discovery to find only peer b, got %v", live)
	}
}

func TestMembership_WitnessSelfHealsUnknownPeer(t *testing.T) {
	dir := directory.NewInMemoryDirectory()
	conf := types.DefaultConfiguration("a")
	m := newMembership(t, dir, "a", conf)

	m.Witness("b", "mem://b")

	if !m.IsLive("b") {
		t.Fatalf("witnessing an unknown peer should self-heal it as Live")
	}
	endpoint, known := m.Endpoint("b")
	if !known || endpoint != "mem://b" {
		t.Fatalf("expected endpoint mem://b to be recorded, got %q known=%v", endpoint, known)
	}
}

func TestMembership_UnknownPeerDefaultsLive(t *testing.T) {
	dir := directory.NewInMemoryDirectory()
	conf := types.DefaultConfiguration("a")
	m := newMembership(t, dir, "a", conf)

	if !m.IsLive("ghost") {
		t.Fatalf("a peer with no record should default to Live")
	}
}

func TestMembership_CheckHeartbeatsFlipsSilentPeerToSuspected(t *testing.T) {
	dir := directory.NewInMemoryDirectory()
	conf := types.DefaultConfiguration("a")
	conf.HeartbeatTimeout = 10 * time.Millisecond
	m := newMembership(t, dir, "a", conf)

	m.Witness("b", "mem://b")
	time.Sleep(20 * time.Millisecond)

	suspected := m.CheckHeartbeats()
	if len(suspected) != 1 || suspected[0] != "b" {
		t.Fatalf("expected b to be freshly suspected, got %v", suspected)
	}
	if m.IsLive("b") {
		t.Fatalf("b should no longer be considered Live")
	}

	// A second call with no further silence should not re-report it.
	if again := m.CheckHeartbeats(); len(again) != 0 {
		t.Fatalf("expected no further transitions, got %v", again)
	}
}

func TestMembership_DirectoryUnavailableSkipsTick(t *testing.T) {
	conf := types.DefaultConfiguration("a")
	m := newMembership(t, failingDirectory{}, "a", conf)

	m.Discover()
	if len(m.LivePeers()) != 0 {
		t.Fatalf("a failed discovery tick should not fabricate peers")
	}
}

type failingDirectory struct{}

func (failingDirectory) Register(string, string) error        { return nil }
func (failingDirectory) Lookup(string) (string, error)         { return "", types.ErrDirectoryUnavailable }
func (failingDirectory) List(string) (map[string]string, error) {
	return nil, types.ErrDirectoryUnavailable
}
func (failingDirectory) Remove(string) error { return nil }
