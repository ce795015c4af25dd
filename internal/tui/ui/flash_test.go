package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/conversation"
)

func TestFlashExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := NewFlashModel(clock)

	f.Info("saved")
	m := f.GetMessage()
	if m == nil || m.Text != "saved" || m.Level != FlashInfo {
		t.Fatalf("GetMessage() = %+v, want info 'saved'", m)
	}

	clock.Advance(5 * time.Second)
	if m := f.GetMessage(); m != nil {
		t.Errorf("GetMessage() after expiry = %+v, want nil", m)
	}
}

func TestFlashNewerReplaces(t *testing.T) {
	f := NewFlashModel(clockwork.NewFakeClock())
	f.Info("one")
	f.Err(errors.New("two"))
	if m := f.GetMessage(); m == nil || m.Text != "two" || m.Level != FlashErr {
		t.Errorf("GetMessage() = %+v, want error 'two'", m)
	}
}

func TestFlashDismiss(t *testing.T) {
	f := NewFlashModel(clockwork.NewFakeClock())
	f.Warn("careful")
	f.Dismiss()
	if m := f.GetMessage(); m != nil {
		t.Errorf("GetMessage() after Dismiss = %+v, want nil", m)
	}
}

func TestFlashNotifyLevels(t *testing.T) {
	f := NewFlashModel(clockwork.NewFakeClock())
	cases := []struct {
		level conversation.Level
		want  FlashLevel
	}{
		{conversation.LevelInfo, FlashInfo},
		{conversation.LevelWarn, FlashWarn},
		{conversation.LevelError, FlashErr},
	}
	for _, tc := range cases {
		f.Notify(conversation.Notification{Level: tc.level, Text: conversation.TextSendFailed})
		m := f.GetMessage()
		if m == nil || m.Level != tc.want || m.Text != conversation.TextSendFailed {
			t.Errorf("Notify(%v) -> %+v, want level %v", tc.level, m, tc.want)
		}
	}
}

func TestFlashWatch(t *testing.T) {
	f := NewFlashModel(clockwork.NewFakeClock())
	f.Info("hello")
	select {
	case m := <-f.Watch():
		if m.Text != "hello" {
			t.Errorf("watched %q, want hello", m.Text)
		}
	default:
		t.Fatal("no message on Watch()")
	}
}
