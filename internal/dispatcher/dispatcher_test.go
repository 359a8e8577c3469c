package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8swatchdog/internal/eventbus"
	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/queue"
	logx "k8swatchdog/pkg/logx"
)

func TestDispatchFansOutToEnabledChannels(t *testing.T) {
	t.Parallel()

	tg := queue.New[notifier.Report]()
	mail := queue.New[notifier.Report]()
	off := queue.New[notifier.Report]()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	d := New([]Route{
		{Name: "telegram", Enabled: true, Queue: tg},
		{Name: "email", Enabled: true, Queue: mail},
		{Name: "webhook", Enabled: false, Queue: off},
	}, bus, logx.Nop())

	n := d.Dispatch(notifier.Report{Kind: notifier.KindChange, Text: "Pod details:\n"})
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, tg.Len())
	assert.Equal(t, 1, mail.Len())
	assert.Equal(t, 0, off.Len())

	select {
	case ev := <-events:
		assert.Equal(t, notifier.EventDispatched, ev.Type)
		payload, ok := ev.Data.(DispatchEvent)
		require.True(t, ok)
		assert.Equal(t, []string{"telegram", "email"}, payload.Channels)
	case <-time.After(time.Second):
		t.Fatal("no dispatch event")
	}
}

func TestDispatchDropsWhenNothingEnabled(t *testing.T) {
	t.Parallel()

	q := queue.New[notifier.Report]()
	d := New([]Route{{Name: "telegram", Enabled: false, Queue: q}}, nil, logx.Nop())
	assert.Equal(t, 0, d.Dispatch(notifier.Report{Text: "x"}))
	assert.Equal(t, 0, q.Len())
}

func TestRunForwardsCloseToEveryQueue(t *testing.T) {
	t.Parallel()

	in := queue.New[notifier.Report]()
	tg := queue.New[notifier.Report]()
	mail := queue.New[notifier.Report]()
	d := New([]Route{
		{Name: "telegram", Enabled: true, Queue: tg},
		{Name: "email", Enabled: false, Queue: mail},
	}, nil, logx.Nop())

	in.Put(notifier.Report{Text: "first"})
	in.Put(notifier.CloseReport())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx, in))

	r, err := tg.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", r.Text)
	r, err = tg.Get(ctx)
	require.NoError(t, err)
	assert.True(t, r.Close)

	r, err = mail.Get(ctx)
	require.NoError(t, err)
	assert.True(t, r.Close)
}
