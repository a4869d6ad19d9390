package cache

import "testing"

func TestCacheKeyIncludesInstanceUID(t *testing.T) {
	got := CacheKey("ingest", "study-1", "series-1", "instance-1", "dedup")
	want := "ingest:study-1:series-1:instance-1:dedup"
	if got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}
}

func TestCacheKeyFallsBackToSeriesScope(t *testing.T) {
	got := CacheKey("ingest", "study-1", "series-1", "", "dedup")
	want := "ingest:study-1:series-1:dedup"
	if got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}
}

func TestCacheKeyFallsBackToStudyScope(t *testing.T) {
	got := CacheKey("ingest", "study-1", "", "", "dedup")
	want := "ingest:study-1:dedup"
	if got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}
}

func TestCacheKeyDistinctScopesDoNotCollide(t *testing.T) {
	a := CacheKey("ingest", "study-1", "", "", "dedup")
	b := CacheKey("mrclassifier", "study-1", "", "", "dedup")
	if a == b {
		t.Errorf("expected distinct scopes to produce distinct keys, both were %q", a)
	}
}
