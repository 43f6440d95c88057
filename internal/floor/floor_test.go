package floor

import "testing"

func TestAcquireWhenFree(t *testing.T) {
	f := New()
	d := f.Acquire(GuidedCapture)
	if !d.Granted || d.Holder != GuidedCapture {
		t.Fatalf("expected grant, got %+v", d)
	}
}

func TestAcquireHeldByOtherIsDenied(t *testing.T) {
	f := New()
	f.Acquire(GuidedCapture)
	d := f.Acquire(VoiceRecognition)
	if d.Granted || d.Reason != "held_by_other" || d.Holder != GuidedCapture {
		t.Fatalf("expected deny, got %+v", d)
	}
}

func TestReacquireBySameOwner(t *testing.T) {
	f := New()
	f.Acquire(VoiceRecognition)
	d := f.Acquire(VoiceRecognition)
	if !d.Granted {
		t.Fatalf("re-acquire should be granted")
	}
	if f.Acquisitions() != 1 {
		t.Fatalf("re-acquire should not count, got %d", f.Acquisitions())
	}
}

func TestReleaseByNonHolderIsNoOp(t *testing.T) {
	f := New()
	f.Acquire(GuidedCapture)
	d := f.Release(VoiceRecognition)
	if d.Granted || f.Holder() != GuidedCapture {
		t.Fatalf("release by non-holder must not free the floor")
	}
	f.Release(GuidedCapture)
	if f.Holder() != None {
		t.Fatalf("expected free floor")
	}
	if d := f.Acquire(VoiceRecognition); !d.Granted {
		t.Fatalf("expected grant after release")
	}
}

func TestOnReleaseHook(t *testing.T) {
	f := New()
	var got []Owner
	f.OnRelease(func(prev Owner) {
		got = append(got, prev)
		f.Acquire(VoiceRecognition)
	})
	f.Acquire(GuidedCapture)
	f.Release(VoiceRecognition)
	if len(got) != 0 {
		t.Fatalf("hook must not run on a no-op release")
	}
	f.Release(GuidedCapture)
	if len(got) != 1 || got[0] != GuidedCapture {
		t.Fatalf("expected one release of guided capture, got %v", got)
	}
	if f.Holder() != VoiceRecognition {
		t.Fatalf("hook should be able to take the floor, holder=%q", f.Holder())
	}
}
