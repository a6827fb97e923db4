package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"vodworks/internal/model"
	"vodworks/internal/session"
)

func TestEnqueueCreatesRecordAndDescriptor(t *testing.T) {
	h := newHarness(t, &fakeDownloader{})
	ctx := context.Background()

	id, err := h.disp.Enqueue(ctx, model.JobRequest{Kind: model.KindDownload, URL: "https://example.com/v"})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	sess, err := h.store.Get(ctx, id)
	if err != nil {
		t.Fatalf("record missing after Enqueue: %v", err)
	}
	if sess.Status != session.StatusPending {
		t.Fatalf("expected pending, got %s", sess.Status)
	}
	if sess.Metadata["url"] != "https://example.com/v" {
		t.Fatalf("expected url metadata, got %+v", sess.Metadata)
	}

	desc, ok, err := h.queue.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("descriptor missing: ok=%v err=%v", ok, err)
	}
	if desc.ID != id {
		t.Fatalf("descriptor id %s does not match record id %s", desc.ID, id)
	}
}

func TestEnqueueDuplicateID(t *testing.T) {
	h := newHarness(t, &fakeDownloader{})
	ctx := context.Background()

	req := model.JobRequest{ID: "dup", Kind: model.KindDownload, URL: "u"}
	if _, err := h.disp.Enqueue(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := h.disp.Enqueue(ctx, req); !errors.Is(err, session.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRunInlineLeavesNoRecord(t *testing.T) {
	h := newHarness(t, &fakeDownloader{})
	ctx := context.Background()

	id, result, err := h.disp.RunInline(ctx, model.JobRequest{Kind: model.KindDownload, URL: "u"})
	if err != nil {
		t.Fatalf("RunInline failed: %v", err)
	}
	if result.Filename != "clip.mp4" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := h.store.Get(ctx, id); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("synchronous run must not leave a record, got %v", err)
	}

	// The artifact itself remains until retrieved or swept.
	if _, err := h.ws.FilePath(id, "clip.mp4"); err != nil {
		t.Fatalf("artifact missing after inline run: %v", err)
	}
}

func TestRunInlineFailure(t *testing.T) {
	h := newHarness(t, &fakeDownloader{err: errors.New("boom")})
	if _, _, err := h.disp.RunInline(context.Background(), model.JobRequest{Kind: model.KindDownload, URL: "u"}); err == nil {
		t.Fatal("expected error")
	}
}
