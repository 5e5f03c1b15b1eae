package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/types"
)

func TestEngine_CachesTerms(t *testing.T) {
	e, err := NewEngine(nil, WithLogger(zaptest.NewLogger(t).Sugar()))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	a, err := e.Build("/f", "string_equal", []string{"x"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b, err := e.Build("/f", "string_equal", []string{"x"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if a != b {
		t.Error("identical calls must share the cached term")
	}

	c, _ := e.Build("/f", "string_equal", []string{"y"})
	if c == a {
		t.Error("different arguments must not share a term")
	}
	if e.CachedTerms() != 2 {
		t.Errorf("CachedTerms() = %d, want 2", e.CachedTerms())
	}
}

func TestEngine_DoesNotCacheFailures(t *testing.T) {
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, err := e.Build("/f", "nope", nil); !errors.Is(err, types.ErrUnknownHelper) {
		t.Fatalf("Build() error = %v, want ErrUnknownHelper", err)
	}
	if e.CachedTerms() != 0 {
		t.Errorf("CachedTerms() = %d, want 0", e.CachedTerms())
	}
}

func TestEngine_Eviction(t *testing.T) {
	e, err := NewEngine(nil, WithCacheSize(2))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := e.Build("/f", "int_equal", []string{fmt.Sprint(i)}); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
	}
	if e.CachedTerms() != 2 {
		t.Errorf("CachedTerms() = %d, want 2", e.CachedTerms())
	}
}

func TestEngine_InvalidCacheSize(t *testing.T) {
	if _, err := NewEngine(nil, WithCacheSize(0)); err == nil {
		t.Error("NewEngine(cache size 0) error = nil, want error")
	}
}

func TestEngine_UsesDefinitions(t *testing.T) {
	d := defs.NewMap(map[string]any{"user": "root"})
	e, err := NewEngine(d)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	term, err := e.Build("/u", "string_equal", []string{"$user"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res := evaluate(t, term, `{"u": "root", "user": "admin"}`); !res.Success {
		t.Errorf("Success = false, trace %s", res.Trace)
	}
}

func TestCacheKey_NoCollisions(t *testing.T) {
	a := cacheKey(types.HelperCall{Target: "/f", Helper: "concat", Args: []string{"a:b", "c"}})
	b := cacheKey(types.HelperCall{Target: "/f", Helper: "concat", Args: []string{"a", "b:c"}})
	if a == b {
		t.Errorf("cacheKey collision: %q", a)
	}
}

// Terms and engines are shared across goroutines; run with -race.
func TestConcurrentBuildAndEvaluate(t *testing.T) {
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	event := mustEvent(t, `{"f": "value2", "g": "value1", "n": 5}`)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				term, err := e.Build("/f", "string_greater", []string{"$g"})
				if err != nil {
					errs <- err
					return
				}
				res, err := term.Evaluate(event)
				if err != nil || !res.Success {
					errs <- fmt.Errorf("goroutine %d: %v %s", i, err, res.Trace)
					return
				}
				m, err := e.Build("/n", "int_calculate", []string{"sum", fmt.Sprint(i)})
				if err != nil {
					errs <- err
					return
				}
				if _, err := m.Evaluate(event); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if res, _ := Resolve(types.FieldPath{"n"}, event); res.Value != float64(5) {
		t.Errorf("shared event modified: /n = %v", res.Value)
	}
}
