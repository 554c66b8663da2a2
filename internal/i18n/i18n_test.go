package i18n

import "testing"

func TestLocalizerLanguages(t *testing.T) {
	en := NewLocalizer("en")
	id := NewLocalizer("id")

	if got := Text(en, "button_cancel", nil); got != "Cancel" {
		t.Errorf("en button_cancel = %q", got)
	}
	if got := Text(id, "button_cancel", nil); got != "Batal" {
		t.Errorf("id button_cancel = %q", got)
	}
	if got := Text(en, "report_segment", map[string]any{"Index": 2, "Stage": "voice synthesis", "Reason": "quota"}); got != "Segment 2 failed during voice synthesis: quota" {
		t.Errorf("report_segment = %q", got)
	}
	if got := Text(en, "no_such_message", nil); got != "no_such_message" {
		t.Errorf("unknown id = %q", got)
	}
}
