package systemd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	logx "k8swatchdog/pkg/logx"
)

func TestNotifierSendsStates(t *testing.T) {
	t.Parallel()

	var got []string
	n := New(true, logx.Nop())
	n.notify = func(s string) (bool, error) {
		got = append(got, s)
		return true, nil
	}
	n.Ready()
	n.Watchdog()
	n.Status("cycle ok")
	n.Stopping()

	assert.Equal(t, []string{"READY=1", "WATCHDOG=1", "STATUS=cycle ok", "STOPPING=1"}, got)
}

func TestNotifierDisabled(t *testing.T) {
	t.Parallel()

	called := false
	n := New(false, logx.Nop())
	n.notify = func(string) (bool, error) {
		called = true
		return true, nil
	}
	n.Ready()
	assert.False(t, called)
	assert.Zero(t, n.WatchdogInterval())

	var nilN *Notifier
	nilN.Watchdog()
}

func TestNotifierErrorsAreSwallowed(t *testing.T) {
	t.Parallel()

	n := New(true, logx.Nop())
	n.notify = func(string) (bool, error) { return false, errors.New("socket gone") }
	assert.NotPanics(t, n.Ready)
}
