package mqttgw

import "testing"

func TestTopicTailExtractsHWIDFromSubscribedTopic(t *testing.T) {
	got := topicTail("cmd/SW01", "cmd")
	if got != "SW01" {
		t.Fatalf("expected SW01, got %q", got)
	}
}

func TestTopicTailEmptyWhenNoTrailingSegment(t *testing.T) {
	if got := topicTail("cmd", "cmd"); got != "" {
		t.Fatalf("expected empty tail for bare subscribe topic, got %q", got)
	}
}

func TestTopicTailEmptyWhenMultiSegment(t *testing.T) {
	// "cmd/a/b" is not the "{subscribe_topic}/{hwid}" shape — the
	// payload's device_id should be used instead.
	if got := topicTail("cmd/a/b", "cmd"); got != "" {
		t.Fatalf("expected empty tail for multi-segment remainder, got %q", got)
	}
}

func TestTopicTailEmptyWhenTopicDoesNotMatchPrefix(t *testing.T) {
	if got := topicTail("other/SW01", "cmd"); got != "" {
		t.Fatalf("expected empty tail when prefix does not match, got %q", got)
	}
}

func TestConfirmationDocIncludesMessageIDWhenPresent(t *testing.T) {
	doc := confirmationDoc("SW01", "sysContact", "m7")
	if doc["status"] != "success" || doc["message_id"] != "m7" || doc["device_id"] != "SW01" {
		t.Fatalf("unexpected confirmation doc: %+v", doc)
	}
}

func TestConfirmationDocOmitsMessageIDWhenAbsent(t *testing.T) {
	doc := confirmationDoc("SW01", "sysContact", "")
	if _, ok := doc["message_id"]; ok {
		t.Fatalf("expected no message_id key when absent, got %+v", doc)
	}
}

func TestErrorDocIncludesErrorText(t *testing.T) {
	doc := errorDoc("SW01", "sysContact", "", "not writable")
	if doc["status"] != "error" || doc["error"] != "not writable" {
		t.Fatalf("unexpected error doc: %+v", doc)
	}
}
