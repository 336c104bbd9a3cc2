package analyzecache

import (
	"sync"
	"testing"

	"cqasm/internal/dialect"
	"cqasm/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	if err != nil {
		t.Fatalf("version.Parse(%q) failed: %v", s, err)
	}
	return v
}

func TestAnalyzeCachesIdenticalInput(t *testing.T) {
	c := New()
	maxV := mustVersion(t, "3.0")
	src := "version 1.0\nqubits 1\nh q[0]\n"

	first := c.Analyze(dialect.V1, maxV, src, "a.cq")
	second := c.Analyze(dialect.V1, maxV, src, "a.cq")
	if first != second {
		t.Error("repeated calls with identical inputs should return the same cached *AnalysisResult")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestAnalyzeDistinguishesFileName(t *testing.T) {
	c := New()
	maxV := mustVersion(t, "3.0")
	src := "version 1.0\nqubits 1\nh q[0]\n"

	c.Analyze(dialect.V1, maxV, src, "a.cq")
	c.Analyze(dialect.V1, maxV, src, "b.cq")
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (different file names are different cache entries)", c.Len())
	}
}

func TestAnalyzeDistinguishesDialect(t *testing.T) {
	c := New()
	maxV := mustVersion(t, "3.0")
	src := "version 1.0\nqubits 1\nh q[0]\n"

	c.Analyze(dialect.V1, maxV, src, "a.cq")
	c.Analyze(dialect.V3, maxV, src, "a.cq")
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (different dialects are different cache entries)", c.Len())
	}
}

func TestForgetEvictsEntry(t *testing.T) {
	c := New()
	maxV := mustVersion(t, "3.0")
	src := "version 1.0\nqubits 1\nh q[0]\n"

	c.Analyze(dialect.V1, maxV, src, "a.cq")
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 before Forget", c.Len())
	}
	c.Forget(dialect.V1, maxV, src, "a.cq")
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Forget", c.Len())
	}
}

func TestAnalyzeDefaultsEmptyFileName(t *testing.T) {
	c := New()
	maxV := mustVersion(t, "3.0")
	src := "version 1.0\nqubits 1\nh q[0]\n"

	withExplicit := c.Analyze(dialect.V1, maxV, src, "")
	c2 := New()
	withBlank := c2.Analyze(dialect.V1, maxV, src, "")
	if withExplicit.Program.APIVersion != withBlank.Program.APIVersion {
		t.Error("an empty file name should consistently fall back to the default file name")
	}
}

func TestAnalyzeConcurrentCallsDeduplicate(t *testing.T) {
	c := New()
	maxV := mustVersion(t, "3.0")
	src := "version 1.0\nqubits 1\nh q[0]\n"

	var wg sync.WaitGroup
	results := make([]interface{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Analyze(dialect.V1, maxV, src, "a.cq")
		}(i)
	}
	wg.Wait()
	first := results[0]
	for _, r := range results {
		if r != first {
			t.Error("concurrent calls with the same key should all observe the same result pointer")
		}
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after deduplicated concurrent calls", c.Len())
	}
}
