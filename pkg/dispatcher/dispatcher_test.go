package dispatcher_test

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventd/pkg/dispatcher"
	"eventd/pkg/events"
	"eventd/pkg/props"
	"eventd/pkg/sinks"
)

type emptyEvent struct{}

func (emptyEvent) EventName() events.Name { return "empty" }

type simpleEvent struct {
	Map map[string]string `json:"map"`
}

func (simpleEvent) EventName() events.Name { return "simple" }

type technicalEvent struct {
	Map map[string]string `json:"map"`
}

func (technicalEvent) EventName() events.Name { return "technical" }
func (technicalEvent) TechnicalEvent()        {}

type emptyCustomizableEvent struct{}

func (e emptyCustomizableEvent) Customized(events.SinkName) *events.Customized {
	return &events.Customized{Name: "empty customizable", Body: e}
}

type customizableEvent struct {
	Map map[string]string
}

func (e customizableEvent) Customized(sink events.SinkName) *events.Customized {
	var extra map[string]string
	switch sink {
	case "one":
		extra = map[string]string{"1": "a"}
	case "two":
		extra = map[string]string{"2": "b"}
	case "three":
		return nil
	default:
		extra = map[string]string{"3": "c"}
	}
	merged := map[string]string{}
	for k, v := range e.Map {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &events.Customized{Name: "customizable", Body: simpleEvent{Map: merged}}
}

// failingEvent cannot be encoded.
type failingEvent struct {
	Ch chan int
}

func (failingEvent) EventName() events.Name { return "failing" }

type fixture struct {
	one, two, three *sinks.Memory
	dispatcher      *dispatcher.Dispatcher
	errs            []error
}

// newFixture mirrors the usual deployment: regular "one", technical "two",
// regular "three", with synchronous delivery.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		one:   sinks.NewMemory("one", false),
		two:   sinks.NewMemory("two", true),
		three: sinks.NewMemory("three", false),
	}
	d, err := dispatcher.New(
		[]dispatcher.Sink{f.one, f.two, f.three},
		dispatcher.WithExecutor(dispatcher.Immediate{}),
		dispatcher.WithLogger(zerolog.Nop()),
		dispatcher.WithErrorHandler(func(err error) { f.errs = append(f.errs, err) }),
	)
	require.NoError(t, err)
	f.dispatcher = d
	return f
}

func mapProps(m map[string]string) string {
	inner := make(map[string]props.Value, len(m))
	for k, v := range m {
		inner[k] = props.String(v)
	}
	return props.Properties{"map": props.Object(inner)}.String()
}

func requireSingle(t *testing.T, m *sinks.Memory, name events.Name, wantJSON string) {
	t.Helper()
	recs := m.Records()
	require.Len(t, recs, 1, "sink %s", m.Name())
	assert.Equal(t, name, recs[0].Name)
	assert.JSONEq(t, wantJSON, recs[0].Properties.String())
}

func TestNew_RequiresTechnicalSink(t *testing.T) {
	_, err := dispatcher.New([]dispatcher.Sink{sinks.NewMemory("one", false)})
	require.Error(t, err)
	assert.True(t, dispatcher.IsNoTechnicalSink(err))
	assert.ErrorIs(t, err, dispatcher.ErrNoTechnicalSink)

	assert.Panics(t, func() {
		dispatcher.MustNew([]dispatcher.Sink{sinks.NewMemory("one", false)})
	})
}

func TestNew_NoSinksIsLegal(t *testing.T) {
	d, err := dispatcher.New(nil, dispatcher.WithExecutor(dispatcher.Immediate{}))
	require.NoError(t, err)
	assert.Empty(t, d.Sinks())

	d.Send("anything", map[string]int{"a": 1})
	d.SetUserID(nil)
	d.SetSinkEnabled(false, "none")

	owned, err := dispatcher.New(nil)
	require.NoError(t, err)
	owned.Close()
}

func TestNew_IgnoresNilSinks(t *testing.T) {
	tech := sinks.NewMemory("tech", true)
	d, err := dispatcher.New([]dispatcher.Sink{nil, tech, nil}, dispatcher.WithExecutor(dispatcher.Immediate{}))
	require.NoError(t, err)
	require.Len(t, d.Sinks(), 1)

	d.Send("e", "x")
	assert.Len(t, tech.Records(), 1)
}

func TestSetUserID_ReachesEverySinkOnce(t *testing.T) {
	f := newFixture(t)
	f.three.SetEnabled(false)
	f.dispatcher.SetEnabled(false)

	id := "user id"
	f.dispatcher.SetUserID(&id)
	id = "mutated after call"
	f.dispatcher.SetUserID(nil)

	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		ids := m.UserIDs()
		require.Len(t, ids, 2, "sink %s", m.Name())
		require.NotNil(t, ids[0])
		assert.Equal(t, "user id", *ids[0])
		assert.Nil(t, ids[1])
	}
}

func TestSend_EmptyEvent(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendEvent(emptyEvent{})

	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		requireSingle(t, m, "empty", `{}`)
	}
}

func TestSend_SimpleEvent(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendEvent(simpleEvent{Map: map[string]string{"value": "1"}})

	want := mapProps(map[string]string{"value": "1"})
	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		requireSingle(t, m, "simple", want)
	}
}

func TestSend_NamedBody(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.Send("simple", map[string]string{"value": "1"})

	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		requireSingle(t, m, "simple", `{"value":"1"}`)
	}
}

func TestSend_EachSinkGetsItsOwnMap(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.Send("simple", map[string]string{"value": "1"})

	f.one.Records()[0].Properties["value"] = props.String("changed")
	s, _ := f.two.Records()[0].Properties["value"].AsString()
	assert.Equal(t, "1", s)
}

func TestSend_EmptyCustomizableEvent(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendCustomizable(emptyCustomizableEvent{})

	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		requireSingle(t, m, "empty customizable", `{}`)
	}
}

func TestSend_CustomizableEvent(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendCustomizable(customizableEvent{Map: map[string]string{"value": "2"}})

	requireSingle(t, f.one, "customizable", mapProps(map[string]string{"value": "2", "1": "a"}))
	requireSingle(t, f.two, "customizable", mapProps(map[string]string{"value": "2", "2": "b"}))
	assert.Empty(t, f.three.Records())
	assert.Empty(t, f.errs)
}

func TestSend_CustomizableSkipsDisabledSinks(t *testing.T) {
	f := newFixture(t)
	asked := map[events.SinkName]int{}
	f.one.SetEnabled(false)
	f.dispatcher.SendCustomizable(customizeFunc(func(s events.SinkName) *events.Customized {
		asked[s]++
		return &events.Customized{Name: "c", Body: 1}
	}))

	assert.Equal(t, map[events.SinkName]int{"two": 1, "three": 1}, asked)
	assert.Empty(t, f.one.Records())
	requireSingle(t, f.three, "c", `{"body":1}`)
}

type customizeFunc func(events.SinkName) *events.Customized

func (fn customizeFunc) Customized(s events.SinkName) *events.Customized { return fn(s) }

func TestSend_CustomizableFailureDeliversNothing(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendCustomizable(customizeFunc(func(s events.SinkName) *events.Customized {
		if s == "three" {
			return &events.Customized{Name: "c", Body: math.Inf(1)}
		}
		return &events.Customized{Name: "c", Body: "ok"}
	}))

	assert.Empty(t, f.one.Records())
	assert.Empty(t, f.two.Records())
	assert.Empty(t, f.three.Records())
	require.Len(t, f.errs, 1)

	var se *dispatcher.SerializationError
	require.True(t, errors.As(f.errs[0], &se))
	assert.Equal(t, events.SinkName("three"), se.Sink)
	assert.Equal(t, "customizable", se.Kind)
}

func TestSend_CustomizedEncoder(t *testing.T) {
	f := newFixture(t)
	enc := func(any) ([]byte, error) { return []byte(`{"encoded":true}`), nil }
	f.dispatcher.SendCustomizable(customizeFunc(func(events.SinkName) *events.Customized {
		return &events.Customized{Name: "c", Body: "ignored", Encoder: enc}
	}))
	requireSingle(t, f.one, "c", `{"encoded":true}`)
}

func TestSend_TechnicalEvent(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendTechnical(technicalEvent{Map: map[string]string{"value": "3"}})

	assert.Empty(t, f.one.Records())
	assert.Empty(t, f.three.Records())
	requireSingle(t, f.two, "technical", mapProps(map[string]string{"value": "3"}))
}

func TestSendEvent_TechnicalEventStaysTechnical(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendEvent(technicalEvent{Map: map[string]string{"value": "3"}})
	f.dispatcher.SendEvent(events.NewTechnical("dyn", "x"))

	assert.Empty(t, f.one.Records())
	assert.Empty(t, f.three.Records())
	assert.Len(t, f.two.Records(), 2)
}

func TestSend_TechnicalSkipsDisabledTechnicalSink(t *testing.T) {
	f := newFixture(t)
	f.two.SetEnabled(false)
	f.dispatcher.SendTechnical(technicalEvent{})
	assert.Empty(t, f.two.Records())

	f.one.SetTechnical(true)
	f.dispatcher.SendTechnical(technicalEvent{})
	assert.Len(t, f.one.Records(), 1)
}

func TestSetEnabled_Global(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.dispatcher.IsEnabled())

	f.dispatcher.SetEnabled(false)
	assert.False(t, f.dispatcher.IsEnabled())
	f.dispatcher.Send("simple", "x")
	f.dispatcher.SendEvent(simpleEvent{})
	f.dispatcher.SendTechnical(technicalEvent{})
	f.dispatcher.SendCustomizable(emptyCustomizableEvent{})
	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		assert.Empty(t, m.Records())
		assert.True(t, m.IsEnabled(), "global toggle must not touch sink %s", m.Name())
	}

	f.dispatcher.SetEnabled(true)
	f.dispatcher.Send("simple", "x")
	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		assert.Len(t, m.Records(), 1)
	}
}

func TestWithDisabled(t *testing.T) {
	tech := sinks.NewMemory("tech", true)
	d := dispatcher.MustNew([]dispatcher.Sink{tech}, dispatcher.WithExecutor(dispatcher.Immediate{}), dispatcher.WithDisabled())
	assert.False(t, d.IsEnabled())
	d.Send("e", 1)
	assert.Empty(t, tech.Records())
}

func TestSetSinkEnabled(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SetSinkEnabled(false, "two")
	f.dispatcher.Send("simple", "x")

	assert.Len(t, f.one.Records(), 1)
	assert.Empty(t, f.two.Records())
	assert.Len(t, f.three.Records(), 1)
	assert.False(t, f.two.IsEnabled())

	f.dispatcher.SetSinkEnabled(true, "two")
	f.dispatcher.Send("simple", "x")
	assert.Len(t, f.two.Records(), 1)
}

func TestSetSinkEnabled_DuplicateNames(t *testing.T) {
	a := sinks.NewMemory("dup", true)
	b := sinks.NewMemory("dup", false)
	c := sinks.NewMemory("other", false)
	d := dispatcher.MustNew([]dispatcher.Sink{a, b, c}, dispatcher.WithExecutor(dispatcher.Immediate{}))

	d.SetSinkEnabled(false, "dup")
	assert.False(t, a.IsEnabled())
	assert.False(t, b.IsEnabled())
	assert.True(t, c.IsEnabled())

	assert.Equal(t, []dispatcher.SinkInfo{
		{Name: "dup", Technical: true, Enabled: false},
		{Name: "dup", Technical: false, Enabled: false},
		{Name: "other", Technical: false, Enabled: true},
	}, d.Sinks())
}

func TestSend_RootKeyWrapping(t *testing.T) {
	t.Cleanup(func() { props.SetRootKey("") })
	f := newFixture(t)

	f.dispatcher.Send("scalar", "hello")
	f.dispatcher.Send("number", 42)
	f.dispatcher.Send("map", map[string]int{"a": 1})
	props.SetRootKey("root")
	f.dispatcher.Send("scalar", []string{"x"})

	recs := f.one.Records()
	require.Len(t, recs, 4)
	assert.JSONEq(t, `{"body":"hello"}`, recs[0].Properties.String())
	assert.JSONEq(t, `{"body":42}`, recs[1].Properties.String())
	assert.JSONEq(t, `{"a":1}`, recs[2].Properties.String())
	assert.JSONEq(t, `{"root":["x"]}`, recs[3].Properties.String())
}

func TestSend_SerializationFailureIsDroppedAndReported(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendEvent(failingEvent{Ch: make(chan int)})
	f.dispatcher.SendTechnical(events.NewTechnical("tech", func() {}))
	f.dispatcher.Send("ok", "fine")

	for _, m := range []*sinks.Memory{f.one, f.two, f.three} {
		requireSingle(t, m, "ok", `{"body":"fine"}`)
	}
	require.Len(t, f.errs, 2)
	for _, err := range f.errs {
		assert.True(t, dispatcher.IsSerialization(err))
		assert.True(t, props.IsEncodeError(err))
	}
	var se *dispatcher.SerializationError
	require.True(t, errors.As(f.errs[0], &se))
	assert.Equal(t, events.Name("failing"), se.Name)
	assert.Contains(t, se.Error(), "failing")
}

func TestSendWith_Encoder(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.SendWith("enc", "ignored", func(any) ([]byte, error) { return []byte(`[1,2]`), nil })
	requireSingle(t, f.one, "enc", `{"body":[1,2]}`)
}

type panickingSink struct {
	sinks.Base
}

func (p *panickingSink) Send(events.Name, props.Properties) { panic("sink exploded") }
func (p *panickingSink) SetUserID(*string)                  { panic("sink exploded") }

func TestPanickingSinkDoesNotHideEventFromOthers(t *testing.T) {
	bad := &panickingSink{}
	bad.Init("bad", false)
	good := sinks.NewMemory("good", true)
	d := dispatcher.MustNew([]dispatcher.Sink{bad, good}, dispatcher.WithLogger(zerolog.Nop()))

	d.Send("first", 1)
	d.SetUserID(nil)
	d.Send("second", 2)
	d.Close()

	recs := good.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, events.Name("first"), recs[0].Name)
	assert.Equal(t, events.Name("second"), recs[1].Name)
	assert.Len(t, good.UserIDs(), 1)
}

func TestPanickingSinkIsContainedWithImmediateExecutor(t *testing.T) {
	bad := &panickingSink{}
	bad.Init("bad", false)
	good := sinks.NewMemory("good", true)
	d := dispatcher.MustNew([]dispatcher.Sink{bad, good},
		dispatcher.WithExecutor(dispatcher.Immediate{}), dispatcher.WithLogger(zerolog.Nop()))

	require.NotPanics(t, func() {
		d.Send("plain", 1)
		d.SendCustomizable(everySink{name: "custom"})
		d.SetUserID(nil)
	})
	recs := good.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, events.Name("plain"), recs[0].Name)
	assert.Equal(t, events.Name("custom"), recs[1].Name)
}

type everySink struct{ name events.Name }

func (e everySink) Customized(events.SinkName) *events.Customized {
	return &events.Customized{Name: e.name, Body: map[string]int{"n": 1}}
}

func TestOrdering_ConcurrentProducers(t *testing.T) {
	for _, size := range []int{0, 4} {
		t.Run(fmt.Sprintf("queue=%d", size), func(t *testing.T) {
			common := sinks.NewMemory("common", false)
			technical := sinks.NewMemory("technical", true)
			d := dispatcher.MustNew(
				[]dispatcher.Sink{common, technical},
				dispatcher.WithQueueSize(size),
				dispatcher.WithLogger(zerolog.Nop()),
			)

			const producers, perProducer = 8, 250
			var wg sync.WaitGroup
			for p := 0; p < producers; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for i := 0; i < perProducer; i++ {
						d.Send("simple event name", map[string]int{"producer": p, "seq": i})
					}
				}(p)
			}
			wg.Wait()
			d.Close()

			a, b := common.Records(), technical.Records()
			require.Len(t, a, producers*perProducer)
			require.Len(t, b, producers*perProducer)

			next := make([]int64, producers)
			for i := range a {
				require.True(t, a[i].Properties.Equal(b[i].Properties), "sinks diverge at %d", i)
				p, _ := a[i].Properties["producer"].AsInt()
				seq, _ := a[i].Properties["seq"].AsInt()
				require.Equal(t, next[p], seq, "producer %d out of order", p)
				next[p]++
			}
		})
	}
}

func TestOrdering_SinkToggleIsOrderedWithSends(t *testing.T) {
	tech := sinks.NewMemory("tech", true)
	other := sinks.NewMemory("other", false)
	d := dispatcher.MustNew([]dispatcher.Sink{tech, other}, dispatcher.WithLogger(zerolog.Nop()))

	d.Send("before", 1)
	d.SetSinkEnabled(false, "other")
	d.Send("after", 2)
	d.Close()

	recs := other.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, events.Name("before"), recs[0].Name)
	assert.Len(t, tech.Records(), 2)
}

func TestFlush(t *testing.T) {
	tech := sinks.NewMemory("tech", true)
	d := dispatcher.MustNew([]dispatcher.Sink{tech})
	defer d.Close()

	for i := 0; i < 10; i++ {
		d.Send("e", i)
	}
	d.Flush()
	assert.Len(t, tech.Records(), 10)

	imm := dispatcher.MustNew([]dispatcher.Sink{tech}, dispatcher.WithExecutor(dispatcher.Immediate{}))
	imm.Flush()
	imm.Close()
}
