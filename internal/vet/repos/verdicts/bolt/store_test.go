package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/haukened/linkvet/internal/vet/domain"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cache", "verdicts.db")
}

func TestBoltStore_PutGet(t *testing.T) {
	path := tempDB(t)
	st, err := New(path, "fp1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, ok, err := st.Get("http://a.test/"); err != nil || ok {
		t.Fatalf("expected empty miss, got ok=%v err=%v", ok, err)
	}

	checked := time.Unix(1700000000, 123)
	want := domain.StoredVerdict{Verdict: domain.TooManyMentions("free", 4), CheckedAt: checked}
	if err := st.Put("http://a.test/", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := st.Get("http://a.test/")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Verdict != want.Verdict || !got.CheckedAt.Equal(checked) {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}

	stats := st.Stats()
	if stats.Verdicts != 1 || stats.Fingerprint != "fp1" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBoltStore_ReopenKeepsVerdictsForSameFingerprint(t *testing.T) {
	path := tempDB(t)
	st, err := New(path, "fp1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Put("http://a.test/", domain.StoredVerdict{Verdict: domain.Clean(), CheckedAt: time.Now()}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = New(path, "fp1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok, _ := st.Get("http://a.test/"); !ok {
		t.Fatalf("verdict lost across reopen")
	}
	_ = st.Close()

	st, err = New(path, "fp2")
	if err != nil {
		t.Fatalf("reopen with new fingerprint: %v", err)
	}
	defer st.Close()
	if _, ok, _ := st.Get("http://a.test/"); ok {
		t.Fatalf("verdicts must be dropped when the rule set changes")
	}
	if st.Stats().Fingerprint != "fp2" {
		t.Fatalf("fingerprint not updated")
	}
}

func TestBoltStore_VisitKeys(t *testing.T) {
	st, err := New(tempDB(t), "fp")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()

	for _, u := range []string{"http://c.test/", "http://a.test/", "http://b.test/"} {
		if err := st.Put(u, domain.StoredVerdict{Verdict: domain.Clean(), CheckedAt: time.Now()}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	var keys []string
	if err := st.VisitKeys(func(k []byte) bool {
		keys = append(keys, string(k))
		return true
	}); err != nil {
		t.Fatalf("VisitKeys: %v", err)
	}
	want := []string{"http://a.test/", "http://b.test/", "http://c.test/"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}

	n := 0
	_ = st.VisitKeys(func([]byte) bool { n++; return false })
	if n != 1 {
		t.Fatalf("visit should stop after returning false, visited %d", n)
	}
}

func TestDecodeVerdict_Truncated(t *testing.T) {
	if _, err := decodeVerdict([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated value")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sv := domain.StoredVerdict{Verdict: domain.ForbiddenDomain("ADS", "ads.example"), CheckedAt: time.Unix(0, 42)}
	got, err := decodeVerdict(encodeVerdict(sv))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Verdict != sv.Verdict || !got.CheckedAt.Equal(sv.CheckedAt) {
		t.Fatalf("round trip = %+v, want %+v", got, sv)
	}
}
