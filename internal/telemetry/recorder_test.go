package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/srg/blelink/internal/protocol"
	"github.com/srg/blelink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type RecorderTestSuite struct {
	suite.Suite

	received time.Time
}

func (suite *RecorderTestSuite) SetupTest() {
	suite.received = time.Date(2024, time.March, 5, 14, 7, 30, 0, time.UTC)
}

func (suite *RecorderTestSuite) newRecorder(size uint32) *Recorder {
	r, err := NewRecorder(size, testutils.NewTestLogger())
	suite.Require().NoError(err)
	r.Location = time.UTC
	r.now = func() time.Time { return suite.received }
	return r
}

func frame(primary, secondary byte) protocol.Telemetry {
	return protocol.Telemetry{
		Year: 24, Month: 3, Day: 5, Hour: 14, Minute: 7,
		Primary: primary, Secondary: secondary, Battery: 150, Code: 0x07,
	}
}

func (suite *RecorderTestSuite) TestNewRecorder() {
	suite.Run("ValidSize", func() {
		r, err := NewRecorder(100, nil)
		suite.NoError(err)
		suite.GreaterOrEqual(r.buffer.Cap(), uint32(100)) // Buffer may be power-of-2 rounded
	})

	suite.Run("ZeroSize", func() {
		_, err := NewRecorder(0, nil)
		suite.ErrorContains(err, "must be > 0")
	})

	suite.Run("TooLarge", func() {
		_, err := NewRecorder(MaxHistorySize+1, nil)
		suite.ErrorContains(err, "exceeds maximum")
	})
}

func (suite *RecorderTestSuite) TestRecordsReadings() {
	// GOAL: Verify telemetry callbacks become decoded readings drained oldest first
	//
	// TEST SCENARIO: two sessions, two readings -> drain -> readings in order, counters match

	r := suite.newRecorder(8)
	r.OnConnected("AA:BB:CC:DD:EE:FF")
	r.OnTelemetry("AA:BB:CC:DD:EE:FF", frame(36, 6))
	r.OnDisconnected("AA:BB:CC:DD:EE:FF", errors.New("link lost"))
	r.OnConnected("AA:BB:CC:DD:EE:FF")
	r.OnTelemetry("AA:BB:CC:DD:EE:FF", frame(37, 1))

	readings, err := r.Drain()
	suite.Require().NoError(err)

	testutils.NewJSONAsserter(suite.T()).AssertValue(map[string]any{"readings": readings}, `{"readings": [
		{"address": "AA:BB:CC:DD:EE:FF", "value": "36.6", "battery": 2,
		 "measured": "2024-03-05T14:07:00Z", "received": "2024-03-05T14:07:30Z"},
		{"address": "AA:BB:CC:DD:EE:FF", "value": "37.1", "battery": 2}
	]}`)
	suite.Equal(Stats{Received: 2, Sessions: 2}, r.Stats())

	again, err := r.Drain()
	suite.NoError(err)
	suite.Empty(again, "drain MUST empty the buffer")
}

func (suite *RecorderTestSuite) TestOverwritesOldest() {
	// GOAL: Verify a full buffer keeps the newest readings and counts the replaced ones

	r := suite.newRecorder(4)
	capacity := int(r.buffer.Cap())
	total := capacity + 5

	for i := 0; i < total; i++ {
		r.OnTelemetry("AA:BB:CC:DD:EE:FF", frame(byte(i), 0))
	}

	readings, err := r.Drain()
	suite.Require().NoError(err)
	stats := r.Stats()

	suite.Equal(int64(total), stats.Received)
	suite.Equal(int64(total), int64(len(readings))+stats.Overwritten, "every reading MUST be drained or counted as overwritten")
	suite.Require().NotEmpty(readings)
	first := total - len(readings)
	for i, reading := range readings {
		suite.Equal(frame(byte(first+i), 0).Reading(), reading.Value, "survivors MUST be the newest readings in order")
	}
}

func (suite *RecorderTestSuite) TestConcurrentProducers() {
	// GOAL: Verify readings from several peripherals are all accounted for

	r := suite.newRecorder(1024)
	addresses := []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:03"}

	var wg sync.WaitGroup
	for _, addr := range addresses {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.OnTelemetry(addr, frame(byte(i), 0))
			}
		}(addr)
	}
	wg.Wait()

	readings, err := r.Drain()
	suite.Require().NoError(err)
	suite.Len(readings, 150)

	perAddress := map[string]int{}
	for _, reading := range readings {
		perAddress[reading.Address]++
	}
	for _, addr := range addresses {
		suite.Equal(50, perAddress[addr])
	}
}

func TestRecorderTestSuite(t *testing.T) {
	suite.Run(t, new(RecorderTestSuite))
}
