package advisor

import (
	"testing"
	"time"

	"github.com/runixer/ipsi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(ttl time.Duration, max int) (*SessionStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 11, 1, 9, 0, 0, 0, time.UTC)}
	st := NewSessionStore(testutil.TestLogger(), ttl, max)
	st.now = clock.now
	return st, clock
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	st, _ := newTestStore(time.Hour, 0)

	s, err := st.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateAwaitingInput, s.State())
	assert.Empty(t, s.History())

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	other, err := st.Create()
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
	assert.Equal(t, 2, st.Len())
}

func TestSessionStore_GetUnknown(t *testing.T) {
	st, _ := newTestStore(time.Hour, 0)

	_, err := st.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_EvictIdle(t *testing.T) {
	st, clock := newTestStore(time.Hour, 0)

	idle, err := st.Create()
	require.NoError(t, err)
	clock.advance(30 * time.Minute)
	fresh, err := st.Create()
	require.NoError(t, err)

	clock.advance(45 * time.Minute)
	assert.Equal(t, 1, st.Evict())

	_, err = st.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = st.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestSessionStore_EvictSkipsBusySessions(t *testing.T) {
	st, clock := newTestStore(time.Hour, 0)

	s, err := st.Create()
	require.NoError(t, err)
	require.NoError(t, s.begin(clock.now()))

	clock.advance(2 * time.Hour)
	assert.Equal(t, 0, st.Evict())

	s.end(clock.now())
	clock.advance(2 * time.Hour)
	assert.Equal(t, 1, st.Evict())
}

func TestSessionStore_LimitEvictsIdleFirst(t *testing.T) {
	st, clock := newTestStore(time.Hour, 2)

	_, err := st.Create()
	require.NoError(t, err)
	_, err = st.Create()
	require.NoError(t, err)

	_, err = st.Create()
	assert.ErrorIs(t, err, ErrSessionLimit)

	clock.advance(2 * time.Hour)
	_, err = st.Create()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
}

func TestSessionStore_NoTTLNeverEvicts(t *testing.T) {
	st, clock := newTestStore(0, 0)

	_, err := st.Create()
	require.NoError(t, err)
	clock.advance(1000 * time.Hour)

	assert.Equal(t, 0, st.Evict())
	assert.Equal(t, 1, st.Len())
}

func TestSessionStore_StartStop(t *testing.T) {
	st := NewSessionStore(testutil.TestLogger(), time.Millisecond, 0)
	_, err := st.Create()
	require.NoError(t, err)

	st.Start(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return st.Len() == 0 }, time.Second, 5*time.Millisecond)

	st.Stop()
	st.Stop()
}

func TestSession_BeginIsExclusive(t *testing.T) {
	s := newSession("s1", time.Now())

	require.NoError(t, s.begin(time.Now()))
	assert.True(t, s.busy())
	assert.ErrorIs(t, s.begin(time.Now()), ErrTurnInProgress)

	s.setState(StateReasoning)
	s.end(time.Now())

	assert.False(t, s.busy())
	assert.Equal(t, StateAwaitingInput, s.State())
	assert.NoError(t, s.begin(time.Now()))
	s.end(time.Now())
}

func TestSession_HistoryIsCopy(t *testing.T) {
	s := newSession("s1", time.Now())
	s.append(Turn{Role: RoleUser, Text: "질문"})

	h := s.History()
	h[0].Text = "changed"

	assert.Equal(t, "질문", s.History()[0].Text)
}

func TestSession_Messages(t *testing.T) {
	s := newSession("s1", time.Now())
	s.append(Turn{Role: RoleAssistant, Text: "안녕하세요"})
	s.append(Turn{Role: RoleUser, Text: "서울대?"})

	msgs := s.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "서울대?", msgs[1].Content)
}
