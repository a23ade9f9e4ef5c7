package central_test

import (
	"context"
	"testing"

	"github.com/srg/blelink/internal/central"
	"github.com/srg/blelink/internal/device"
	"github.com/srg/blelink/internal/peripheral"
	"github.com/srg/blelink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type CentralTestSuite struct {
	testutils.TransportSuite

	central *central.Central
}

func (s *CentralTestSuite) SetupTest() {
	s.TransportSuite.SetupTest()
	s.central = central.New(s.Transport, s.Logger, peripheral.Options{})
}

func (s *CentralTestSuite) TearDownTest() {
	s.central.Close()
}

func (s *CentralTestSuite) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	s.T().Cleanup(cancel)
	return ctx
}

func (s *CentralTestSuite) TestConnectCreatesOnFirstUse() {
	// GOAL: Verify a valid but unknown address gets a handle on connect

	c := s.central.Connect("aa:bb:cc:dd:ee:10")

	link := s.RequireLink()
	s.Equal("AA:BB:CC:DD:EE:10", link.Address())
	s.False(link.Auto())
	s.True(c.Pending())

	p, err := s.central.Peripheral("AA:BB:CC:DD:EE:10")
	s.Require().NoError(err)
	s.Equal("AA:BB:CC:DD:EE:10", p.Address())
	s.Equal(1, s.central.Len())
}

func (s *CentralTestSuite) TestConnectUnknownInvalidIdentity() {
	// GOAL: Verify invalid unknown identities are rejected without touching the transport

	_, err := s.central.Connect("kitchen-sensor").Wait(s.ctx())

	var nf *device.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Equal("peripheral", nf.Resource)
	s.Empty(s.Transport.Links())
	s.Equal(0, s.central.Len())
}

func (s *CentralTestSuite) TestRegister() {
	// GOAL: Verify Register creates valid identities once and rejects the rest

	p, err := s.central.Register("aa:bb:cc:dd:ee:17")
	s.Require().NoError(err)
	again, err := s.central.Register("AA:BB:CC:DD:EE:17")
	s.Require().NoError(err)
	s.Same(p, again, "Register MUST return the existing handle")
	s.Empty(s.Transport.Links(), "Register MUST NOT open a link")

	_, err = s.central.Register("kitchen-sensor")
	var nf *device.NotFoundError
	s.ErrorAs(err, &nf)
}

func (s *CentralTestSuite) TestAutoConnect() {
	// GOAL: Verify auto connect asks the transport to keep the link and rejects malformed addresses

	s.central.AutoConnect("AA:BB:CC:DD:EE:11")
	s.True(s.RequireLink().Auto())

	_, err := s.central.AutoConnect("AA:BB:CC").Wait(s.ctx())
	s.ErrorIs(err, device.ErrInvalidAddress)
}

func (s *CentralTestSuite) TestOperationsOnUnknownIdentity() {
	// GOAL: Verify every forwarded operation fails with NotFound for unknown identities

	var nf *device.NotFoundError
	id := "AA:BB:CC:DD:EE:12"

	_, err := s.central.Read(id, "180f", "2a19").Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.Write(id, "fff0", "fff1", []byte{1}, true).Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.RegisterNotify(id, "180f", "2a19").Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.RemoveNotify(id, "180f", "2a19").Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.ReadSignalStrength(id).Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.RequestLinkCapacity(id, 247).Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.RefreshTopology(id, 0).Wait(s.ctx())
	s.ErrorAs(err, &nf)
	_, err = s.central.Disconnect(id).Wait(s.ctx())
	s.ErrorAs(err, &nf)
	s.ErrorAs(s.central.Remove(id), &nf)
	s.False(s.central.IsConnected(id))
}

func (s *CentralTestSuite) TestKnownButDisconnected() {
	// GOAL: Verify operations on a registered but idle peripheral fail with not connected

	s.central.Observe(testutils.NewAdvertisementBuilder().WithAddress("AA:BB:CC:DD:EE:13").Build())

	_, err := s.central.Read("AA:BB:CC:DD:EE:13", "180f", "2a19").Wait(s.ctx())

	s.ErrorIs(err, device.ErrNotConnected)
}

func (s *CentralTestSuite) TestObserveKeepsFirstSeenOrder() {
	// GOAL: Verify List returns observed peripherals in first-seen order with their latest snapshot
	//
	// TEST SCENARIO: observe B, A, B again -> list is B, A -> B carries the second report

	b := testutils.NewAdvertisementBuilder().WithAddress("AA:BB:CC:DD:EE:0B").WithName("B").WithRSSI(-70)
	a := testutils.NewAdvertisementBuilder().WithAddress("AA:BB:CC:DD:EE:0A").WithName("A")

	s.central.Observe(b.Build())
	s.central.Observe(a.Build())
	s.central.Observe(b.WithRSSI(-40).Build())

	list := s.central.List()
	s.Require().Len(list, 2)
	s.Equal("AA:BB:CC:DD:EE:0B", list[0].Address())
	s.Equal("AA:BB:CC:DD:EE:0A", list[1].Address())
	s.Equal(-40, list[0].Advertising().RSSI)
}

func (s *CentralTestSuite) TestConnectedPeripheralIsNotListedUntilSeen() {
	// GOAL: Verify List only reports peripherals seen on air

	s.central.Connect("AA:BB:CC:DD:EE:14")
	s.RequireLink()

	s.Empty(s.central.List())
}

func (s *CentralTestSuite) TestRemove() {
	// GOAL: Verify Remove closes the link and forgets the identity

	s.central.Observe(testutils.NewAdvertisementBuilder().WithAddress("AA:BB:CC:DD:EE:15").Build())
	s.central.Connect("AA:BB:CC:DD:EE:15")
	link := s.RequireLink()

	s.Require().NoError(s.central.Remove("aa:bb:cc:dd:ee:15"))

	s.True(link.Closed())
	s.Empty(s.central.List())
	_, err := s.central.Peripheral("AA:BB:CC:DD:EE:15")
	s.Error(err)
}

func (s *CentralTestSuite) TestIsConnected() {
	// GOAL: Verify IsConnected follows the link state of the handle

	s.central.Connect("AA:BB:CC:DD:EE:16")
	link := s.RequireLink()
	s.False(s.central.IsConnected("AA:BB:CC:DD:EE:16"))

	link.Sink().LinkEstablished()
	s.RequireCall(link, "discover")

	s.True(s.central.IsConnected("AA:BB:CC:DD:EE:16"))
}

func TestCentralTestSuite(t *testing.T) {
	suite.Run(t, new(CentralTestSuite))
}
