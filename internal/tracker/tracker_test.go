package tracker

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/OliveiraNt/kviz/internal/domain"
	"github.com/OliveiraNt/kviz/internal/testutil"
	"github.com/OliveiraNt/kviz/internal/utils"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func versionIs[V any](tr *Tracker[V], v uint64) func() bool {
	return func() bool {
		snap, _ := tr.GetSnapshot(0)
		return snap.Version == v
	}
}

func TestBrokerTracker_EndToEnd(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	coord.Create("/brokers/ids/1", []byte(`{"host":"h1","port":9092}`))
	coord.Create("/brokers/ids/2", []byte(`{"host":"h2","port":9093}`))

	tr := NewBrokerTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	// one version per added broker
	require.Eventually(t, versionIs(tr, 2), waitFor, tick)
	snap, ok := tr.GetSnapshot(0)
	require.True(t, ok)
	require.Equal(t, []domain.Broker{
		{ID: "1", Host: "h1", Port: 9092},
		{ID: "2", Host: "h2", Port: 9093},
	}, snap.Values)

	_, ok = tr.GetSnapshot(snap.Version)
	require.False(t, ok, "caller already holds the latest version")

	// broker 3 is listed but has no readable registration
	coord.Emit("/brokers/ids", []string{"2", "3"})
	require.Eventually(t, func() bool { return coord.DataCalls("/brokers/ids/3") == 1 }, waitFor, tick)
	require.Eventually(t, versionIs(tr, 3), waitFor, tick)

	next, ok := tr.GetSnapshot(snap.Version)
	require.True(t, ok)
	require.Equal(t, uint64(3), next.Version)
	require.Equal(t, []domain.Broker{{ID: "2", Host: "h2", Port: 9093}}, next.Values)
	require.Equal(t, 1, coord.DataCalls("/brokers/ids/2"), "unchanged broker must not be refetched")
}

func TestBrokerTracker_FollowsNodeChanges(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	coord.Create("/brokers/ids", nil)

	tr := NewBrokerTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)
	require.Eventually(t, func() bool { return coord.Subscribed("/brokers/ids") }, waitFor, tick)

	snap, ok := tr.GetSnapshot(0)
	require.True(t, ok, "version 0 is always answered")
	require.Zero(t, snap.Version)
	require.Empty(t, snap.Values)

	coord.Create("/brokers/ids/7", []byte(`{"host":"k7","port":9092}`))
	require.Eventually(t, versionIs(tr, 1), waitFor, tick)

	coord.Delete("/brokers/ids/7")
	require.Eventually(t, versionIs(tr, 2), waitFor, tick)
	snap, _ = tr.GetSnapshot(0)
	require.Empty(t, snap.Values)
}

func TestTracker_StartTwiceIsDefect(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	coord.Create("/brokers/ids", nil)

	tr := NewBrokerTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	err := tr.Start()
	require.ErrorIs(t, err, ErrAlreadyStarted)
	var defect *DefectError
	require.True(t, errors.As(err, &defect))
	require.True(t, tr.Started())
	require.True(t, tr.Running())
}

func TestTracker_StartFailsWithoutParentPath(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()

	tr := NewTopicTracker(coord, NewPaths(""), WithParentWait(10*time.Millisecond))
	err := tr.Start()
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrTimeout)
	var defect *DefectError
	require.False(t, errors.As(err, &defect))
	require.True(t, tr.Started())
	require.False(t, tr.Running(), "a tracker whose parent never appeared does not serve")

	// still terminal: no restart
	require.ErrorIs(t, tr.Start(), ErrAlreadyStarted)
	tr.Close()
}

func TestTopicTracker_ReservedAndPartitions(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	for _, p := range []string{"0", "1", "2"} {
		coord.Create("/brokers/topics/orders/partitions/"+p, nil)
	}
	coord.Create("/brokers/topics/"+domain.ReservedTopic+"/partitions/0", nil)
	coord.Create("/brokers/topics/pending", nil)

	tr := NewTopicTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.Eventually(t, versionIs(tr, 1), waitFor, tick)
	snap, _ := tr.GetSnapshot(0)
	require.Equal(t, []domain.Topic{{Name: "orders", Partitions: 3}}, snap.Values)

	// partitions node appears later; the next notification retries the topic
	coord.Create("/brokers/topics/pending/partitions/0", nil)
	coord.Notify("/brokers/topics")
	require.Eventually(t, versionIs(tr, 2), waitFor, tick)
	snap, _ = tr.GetSnapshot(1)
	require.Equal(t, []domain.Topic{
		{Name: "orders", Partitions: 3},
		{Name: "pending", Partitions: 1},
	}, snap.Values)
}

func TestTracker_ResubscribesAfterFailure(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	coord.Create("/brokers/ids/1", []byte(`{"host":"h1","port":9092}`))
	coord.SetSubscribeErr(errors.New("connection loss"))

	tr := NewBrokerTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	time.Sleep(50 * time.Millisecond)
	require.False(t, coord.Subscribed("/brokers/ids"))

	coord.SetSubscribeErr(nil)
	require.Eventually(t, versionIs(tr, 1), 3*time.Second, tick)
}

func TestTracker_CloseStopsProcessing(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	coord.Create("/brokers/ids/1", []byte(`{"host":"h1","port":9092}`))

	tr := NewBrokerTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	require.Eventually(t, versionIs(tr, 1), waitFor, tick)

	tr.Close()
	coord.Create("/brokers/ids/2", []byte(`{"host":"h2","port":9092}`))
	time.Sleep(50 * time.Millisecond)

	snap, _ := tr.GetSnapshot(0)
	require.Equal(t, uint64(1), snap.Version)
}

func TestBrokerTracker_UnreadableRegistrationIsSkipped(t *testing.T) {
	t.Parallel()
	coord := testutil.NewFakeCoordinator()
	coord.Create("/brokers/ids/1", []byte(`{"host":"h1","port":9092}`))
	coord.Create("/brokers/ids/2", []byte(`{"host":"h2","port":9092}`))
	coord.FailData("/brokers/ids/2", errors.New("connection loss"))

	tr := NewBrokerTracker(coord, NewPaths(""))
	require.NoError(t, tr.Start())
	t.Cleanup(tr.Close)

	require.Eventually(t, versionIs(tr, 1), waitFor, tick)
	snap, _ := tr.GetSnapshot(0)
	require.Equal(t, []domain.Broker{{ID: "1", Host: "h1", Port: 9092}}, snap.Values)

	coord.FailData("/brokers/ids/2", nil)
	coord.Notify("/brokers/ids")
	require.Eventually(t, versionIs(tr, 2), waitFor, tick)
}
