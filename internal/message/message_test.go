package message

import "testing"

func TestNextID(t *testing.T) {
	if got := NextID(nil); got != 1 {
		t.Errorf("empty history: expected 1, got %d", got)
	}

	msgs := []Message{
		{ID: 1, Role: RoleUser, Content: "a"},
		{ID: 7, Role: RoleAssistant, Content: "b"},
		{ID: 3, Role: RoleUser, Content: "c"},
	}
	if got := NextID(msgs); got != 8 {
		t.Errorf("expected max+1 = 8, got %d", got)
	}
}

func TestPlainTextFallback(t *testing.T) {
	plain := Message{Role: RoleUser, Content: "hello"}
	if got := plain.PlainText(); got != "hello" {
		t.Errorf("expected content passthrough, got %q", got)
	}

	multi := UserParts(1, []Part{
		TextPart("look at "),
		ImagePart(ImageData{MediaType: "image/png", Data: "aGk=", FileName: "shot.png"}),
		TextPart(" please"),
	})
	want := "look at [image: shot.png] please"
	if got := multi.PlainText(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPlainTextUnknownPart(t *testing.T) {
	m := Message{Role: RoleUser, Parts: []Part{{Type: "mystery", Text: "x"}}}
	if got := m.PlainText(); got == "" {
		t.Error("unknown part tags must stringify, not vanish")
	}
}
