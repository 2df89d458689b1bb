package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodwatch/internal/alert"
	"floodwatch/internal/hydro"
	"floodwatch/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockUserLister struct {
	users   []*types.User
	listErr error
}

func (m *mockUserLister) ListAlertEligible(context.Context) ([]*types.User, error) {
	return m.users, m.listErr
}

// mockConditionsFetcher serves canned conditions per reach ID and can be told
// to panic on a specific reach.
type mockConditionsFetcher struct {
	mu         sync.Mutex
	byReach    map[string]*hydro.ReachConditions
	panicReach string
	fetches    []string
}

func (m *mockConditionsFetcher) FetchReachConditions(_ context.Context, reachID string) *hydro.ReachConditions {
	m.mu.Lock()
	m.fetches = append(m.fetches, reachID)
	m.mu.Unlock()

	if reachID == m.panicReach {
		panic("boom: " + reachID)
	}
	if rc, ok := m.byReach[reachID]; ok {
		return rc
	}
	return &hydro.ReachConditions{
		ReachID:     reachID,
		Thresholds:  types.ReturnPeriodSet{},
		DisplayName: hydro.PlaceholderName(reachID),
	}
}

type mockDispatchStore struct {
	mu      sync.Mutex
	created []*types.DispatchRecord
	recent  map[string]*types.DispatchRecord // key: userID+"/"+reachID
}

func (m *mockDispatchStore) Create(_ context.Context, rec *types.DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, rec)
	return nil
}

func (m *mockDispatchStore) MostRecentSince(_ context.Context, userID, reachID string, _ time.Time) (*types.DispatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent[userID+"/"+reachID], nil
}

type mockPushSender struct {
	mu      sync.Mutex
	sent    []types.PushMessage
	failFor string // fail sends to this token
}

func (m *mockPushSender) Send(_ context.Context, msg types.PushMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Token == m.failFor {
		return "", errors.New("token rejected")
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

// floodedConditions returns conditions where a 1200 CFS peak crosses the
// 2-year threshold of 30 CMS.
func floodedConditions(reachID string) *hydro.ReachConditions {
	return &hydro.ReachConditions{
		ReachID: reachID,
		Series: []types.FlowSeries{{Name: "shortRange", Points: []types.FlowPoint{
			{ValidTime: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), Flow: 1200},
		}}},
		Thresholds:  types.ReturnPeriodSet{2: 30, 5: 40},
		DisplayName: "Boulder Creek",
	}
}

func calmConditions(reachID string) *hydro.ReachConditions {
	return &hydro.ReachConditions{
		ReachID: reachID,
		Series: []types.FlowSeries{{Name: "shortRange", Points: []types.FlowPoint{
			{ValidTime: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), Flow: 5},
		}}},
		Thresholds:  types.ReturnPeriodSet{2: 30},
		DisplayName: "Calm Creek",
	}
}

func sweepUser(id string, reaches ...string) *types.User {
	return &types.User{
		ID:                   id,
		NotificationsEnabled: true,
		PushToken:            "tok-" + id,
		FavoriteReachIDs:     reaches,
	}
}

type sweeperFixture struct {
	sweeper *Sweeper
	sender  *mockPushSender
	store   *mockDispatchStore
}

func newSweeper(users []*types.User, fetcher *mockConditionsFetcher, store *mockDispatchStore, sender *mockPushSender) *sweeperFixture {
	if store == nil {
		store = &mockDispatchStore{}
	}
	if sender == nil {
		sender = &mockPushSender{}
	}
	guard := alert.NewDedupGuard(store, 6*time.Hour, types.RealClock{}, testLogger)
	sweeper := NewSweeper(SweeperConfig{
		Users:       &mockUserLister{users: users},
		Conditions:  fetcher,
		Evaluator:   alert.NewEvaluator(1),
		Guard:       guard,
		Dispatcher:  alert.NewDispatcher(sender, guard, testLogger),
		Concurrency: 4,
		Logger:      testLogger,
	})
	return &sweeperFixture{sweeper: sweeper, sender: sender, store: store}
}

func TestRun_DispatchesAndCounts(t *testing.T) {
	fetcher := &mockConditionsFetcher{byReach: map[string]*hydro.ReachConditions{
		"flooded": floodedConditions("flooded"),
		"calm":    calmConditions("calm"),
	}}
	f := newSweeper([]*types.User{
		sweepUser("u1", "flooded", "calm"),
		sweepUser("u2", "calm"),
	}, fetcher, nil, nil)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersChecked)
	assert.Equal(t, 1, result.AlertsSent)
	assert.Equal(t, 0, result.Errors)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "tok-u1", f.sender.sent[0].Token)
	require.Len(t, f.store.created, 1, "dispatch recorded for dedup")
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	sweeper := NewSweeper(SweeperConfig{
		Users:  &mockUserLister{listErr: errors.New("db down")},
		Logger: testLogger,
	})

	result, err := sweeper.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, result)
}

func TestRun_FetchFailureIsolatedPerReach(t *testing.T) {
	fetchErr := types.NewAppError(types.ErrCodeUpstreamForecast, "forecast read failed", nil)
	fetcher := &mockConditionsFetcher{byReach: map[string]*hydro.ReachConditions{
		"broken": {
			ReachID:     "broken",
			Thresholds:  types.ReturnPeriodSet{},
			DisplayName: "Location broken",
			FetchErr:    fetchErr,
		},
		"flooded": floodedConditions("flooded"),
	}}
	f := newSweeper([]*types.User{
		sweepUser("u1", "broken", "flooded"),
	}, fetcher, nil, nil)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersChecked)
	assert.Equal(t, 1, result.AlertsSent, "healthy reach still alerted")
	assert.Equal(t, 1, result.Errors)
}

func TestRun_PanicContainedPerUser(t *testing.T) {
	fetcher := &mockConditionsFetcher{
		byReach:    map[string]*hydro.ReachConditions{"flooded": floodedConditions("flooded")},
		panicReach: "cursed",
	}
	f := newSweeper([]*types.User{
		sweepUser("u1", "cursed"),
		sweepUser("u2", "flooded"),
	}, fetcher, nil, nil)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersChecked)
	assert.Equal(t, 1, result.AlertsSent)
	assert.Equal(t, 1, result.Errors)
}

func TestRun_DispatchFailureCounted(t *testing.T) {
	fetcher := &mockConditionsFetcher{byReach: map[string]*hydro.ReachConditions{
		"flooded": floodedConditions("flooded"),
	}}
	sender := &mockPushSender{failFor: "tok-u1"}
	f := newSweeper([]*types.User{
		sweepUser("u1", "flooded"),
		sweepUser("u2", "flooded"),
	}, fetcher, nil, sender)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersChecked)
	assert.Equal(t, 1, result.AlertsSent)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "tok-u2", f.sender.sent[0].Token)
}

func TestRun_CooldownSuppressesRepeat(t *testing.T) {
	fetcher := &mockConditionsFetcher{byReach: map[string]*hydro.ReachConditions{
		"flooded": floodedConditions("flooded"),
	}}
	store := &mockDispatchStore{recent: map[string]*types.DispatchRecord{
		"u1/flooded": {ID: "disp_prev", UserID: "u1", ReachID: "flooded"},
	}}
	f := newSweeper([]*types.User{sweepUser("u1", "flooded")}, fetcher, store, nil)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersChecked)
	assert.Equal(t, 0, result.AlertsSent)
	assert.Equal(t, 0, result.Errors)
	assert.Empty(t, f.sender.sent)
}

func TestRun_SkipsIneligibleUserFromListing(t *testing.T) {
	fetcher := &mockConditionsFetcher{byReach: map[string]*hydro.ReachConditions{
		"flooded": floodedConditions("flooded"),
	}}
	disabled := sweepUser("u1", "flooded")
	disabled.NotificationsEnabled = false
	tokenless := sweepUser("u2", "flooded")
	tokenless.PushToken = ""
	f := newSweeper([]*types.User{
		disabled,
		tokenless,
		sweepUser("u3", "flooded"),
	}, fetcher, nil, nil)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersChecked, "ineligible users are not checked")
	assert.Equal(t, 1, result.AlertsSent)
	assert.Equal(t, 0, result.Errors)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "tok-u3", f.sender.sent[0].Token)
}

func TestRun_NoEligibleUsers(t *testing.T) {
	f := newSweeper(nil, &mockConditionsFetcher{}, nil, nil)

	result, err := f.sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result)
}
