package testutils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// DefaultTimeout bounds every wait on asynchronous peripheral activity in tests.
const DefaultTimeout = 2 * time.Second

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{
		T:      t,
		Logger: NewTestLogger(),
	}
}

// NewTestLogger returns a logger at debug level to track execution flow.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// TransportSuite is a testify suite with a fresh FakeTransport per test.
//
//	type ConnectSuite struct {
//	    testutils.TransportSuite
//	}
//
//	func (s *ConnectSuite) TestConnect() {
//	    p := peripheral.New("AA:BB:CC:DD:EE:FF", s.Transport, s.Logger, peripheral.Options{})
//	    c := p.Connect(false)
//	    link := s.RequireLink()
//	    link.Sink().LinkEstablished()
//	}
type TransportSuite struct {
	suite.Suite

	Helper    *TestHelper
	Logger    *logrus.Logger
	Transport *FakeTransport
	Timeout   time.Duration
}

func (s *TransportSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.Transport = NewFakeTransport()
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
}

// RequireLink waits for the next link opened on the fake transport.
func (s *TransportSuite) RequireLink() *FakeLink {
	link, ok := s.Transport.WaitLink(s.Timeout)
	s.Require().True(ok, "transport MUST open a link")
	return link
}

// RequireCall waits for the next call on link and checks its operation.
func (s *TransportSuite) RequireCall(link *FakeLink, op string) Call {
	call, ok := link.NextCall(s.Timeout)
	s.Require().True(ok, "link MUST receive %q", op)
	s.Require().Equal(op, call.Op, "unexpected link call %s", call)
	return call
}

// RequireNoCall checks that link stays idle for a short while.
func (s *TransportSuite) RequireNoCall(link *FakeLink) {
	call, ok := link.NextCall(50 * time.Millisecond)
	s.Require().False(ok, "link MUST stay idle, got %s", call)
}
