package probe

import (
	"testing"
	"time"
)

func TestAddDirect_HasPendingFor(t *testing.T) {
	tr := New()
	now := time.Now()
	tr.AddDirect(1, "a:1", now)
	if !tr.HasPendingFor("a:1") {
		t.Error("expected HasPendingFor(a:1) after AddDirect")
	}
	if tr.HasPendingFor("b:2") {
		t.Error("HasPendingFor(b:2) should be false")
	}
}

func TestRemoveMatching_Success(t *testing.T) {
	tr := New()
	sent := time.Now()
	tr.AddDirect(5, "a:1", sent)

	ackAt := sent.Add(20 * time.Millisecond)
	rtt, ok := tr.RemoveMatching(5, "a:1", ackAt)
	if !ok {
		t.Fatal("expected RemoveMatching to succeed")
	}
	if rtt != 20*time.Millisecond {
		t.Errorf("rtt = %v, want 20ms", rtt)
	}
	if tr.HasPendingFor("a:1") {
		t.Error("probe should be removed after a matching ack")
	}
}

func TestRemoveMatching_WrongTarget(t *testing.T) {
	tr := New()
	now := time.Now()
	tr.AddDirect(5, "a:1", now)

	_, ok := tr.RemoveMatching(5, "b:2", now)
	if ok {
		t.Error("RemoveMatching with mismatched from address should fail")
	}
	if !tr.HasPendingFor("a:1") {
		t.Error("probe should still be pending after a forged-source ack")
	}
}

func TestRemoveMatching_UnknownSeq(t *testing.T) {
	tr := New()
	_, ok := tr.RemoveMatching(999, "a:1", time.Now())
	if ok {
		t.Error("RemoveMatching on unknown seq should fail")
	}
}

func TestPromoteIndirect_AffectsAllMatchingTarget(t *testing.T) {
	tr := New()
	base := time.Now()
	tr.AddDirect(1, "a:1", base)
	tr.AddDirect(2, "a:1", base) // duplicate target, distinct seq

	promoteAt := base.Add(600 * time.Millisecond)
	tr.PromoteIndirect("a:1", promoteAt)

	for _, p := range tr.Probes() {
		if p.Target != "a:1" {
			continue
		}
		if !p.IndirectSent {
			t.Errorf("probe seq=%d should be marked indirect-sent", p.Seq)
		}
		if !p.SentAt.Equal(promoteAt) {
			t.Errorf("probe seq=%d sent-at = %v, want reset to %v", p.Seq, p.SentAt, promoteAt)
		}
	}
}

func TestDue_PartitionsByIndirectSent(t *testing.T) {
	tr := New()
	base := time.Now()
	tr.AddDirect(1, "a:1", base) // will need indirect
	tr.AddDirect(2, "b:2", base)
	tr.PromoteIndirect("b:2", base) // already indirect-sent

	checkAt := base.Add(600 * time.Millisecond)
	needIndirect, timedOut := tr.Due(500*time.Millisecond, checkAt)

	if len(needIndirect) != 1 || needIndirect[0].Target != "a:1" {
		t.Errorf("needIndirect = %+v, want one entry targeting a:1", needIndirect)
	}
	if len(timedOut) != 1 || timedOut[0].Target != "b:2" {
		t.Errorf("timedOut = %+v, want one entry targeting b:2", timedOut)
	}
}

func TestDue_NotYetDue(t *testing.T) {
	tr := New()
	now := time.Now()
	tr.AddDirect(1, "a:1", now)

	needIndirect, timedOut := tr.Due(500*time.Millisecond, now.Add(100*time.Millisecond))
	if len(needIndirect) != 0 || len(timedOut) != 0 {
		t.Error("probe well within timeout should not be due")
	}
}

func TestPurge_RemovesOnlyPastIndirectTimeout(t *testing.T) {
	tr := New()
	base := time.Now()
	tr.AddDirect(1, "a:1", base)
	tr.PromoteIndirect("a:1", base) // indirect sent at base

	// Not yet past the timeout relative to the (reset) sent-at: survives.
	dropped := tr.Purge(500*time.Millisecond, base.Add(100*time.Millisecond))
	if len(dropped) != 0 {
		t.Errorf("dropped = %v, want none (still within window)", dropped)
	}
	if !tr.HasPendingFor("a:1") {
		t.Error("probe should still be pending")
	}

	dropped = tr.Purge(500*time.Millisecond, base.Add(600*time.Millisecond))
	if len(dropped) != 1 || dropped[0] != "a:1" {
		t.Errorf("dropped = %v, want [a:1]", dropped)
	}
	if tr.HasPendingFor("a:1") {
		t.Error("probe should have been purged")
	}
}

func TestPurge_NeverPromotedSurvives(t *testing.T) {
	tr := New()
	base := time.Now()
	tr.AddDirect(1, "a:1", base)

	// Past the timeout but never promoted to indirect: retain predicate
	// keeps it (!indirectSent is true) until the caller promotes or reaps
	// it through the needIndirect path.
	dropped := tr.Purge(500*time.Millisecond, base.Add(600*time.Millisecond))
	if len(dropped) != 0 {
		t.Errorf("dropped = %v, want none (never promoted)", dropped)
	}
	if !tr.HasPendingFor("a:1") {
		t.Error("un-promoted probe should survive Purge alone")
	}
}

func TestLen(t *testing.T) {
	tr := New()
	if tr.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Len())
	}
	tr.AddDirect(1, "a:1", time.Now())
	if tr.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Len())
	}
}
