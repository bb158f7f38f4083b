package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
}

func TestErrf(t *testing.T) {
	r := Errf[string]("code %d", 404)
	_, err := r.Unwrap()
	if err == nil || err.Error() != "code 404" {
		t.Fatal("Errf wrong message")
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Must should panic on Err")
		}
	}()
	Err[int](errors.New("boom")).Must()
}

func TestMustOk(t *testing.T) {
	v := Ok(7).Must()
	if v != 7 {
		t.Fatal("Must should return value")
	}
}

func TestUnwrapOr(t *testing.T) {
	if Ok(1).UnwrapOr(9) != 1 {
		t.Fatal("should return value")
	}
	if Err[int](errors.New("x")).UnwrapOr(9) != 9 {
		t.Fatal("should return fallback")
	}
}

func TestResultMap(t *testing.T) {
	r := Ok(3).Map(func(v int) int { return v * v })
	if r.Must() != 9 {
		t.Fatal("Map failed")
	}

	e := Err[int](errors.New("x")).Map(func(v int) int { return v * v })
	if e.IsOk() {
		t.Fatal("Map on Err should stay Err")
	}
}

func TestAndThen(t *testing.T) {
	r := Ok(4).AndThen(func(v int) Result[int] { return Ok(v + 1) })
	if r.Must() != 5 {
		t.Fatal("AndThen failed")
	}

	e := Ok(4).AndThen(func(int) Result[int] { return Err[int](errors.New("x")) })
	if e.IsOk() {
		t.Fatal("AndThen should propagate Err")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(42), strconv.Itoa)
	if r.Must() != "42" {
		t.Fatal("MapResult failed")
	}
}

func TestFromPair(t *testing.T) {
	r := FromPair(1, nil)
	if r.Must() != 1 {
		t.Fatal("FromPair ok failed")
	}

	e := FromPair(0, errors.New("x"))
	if e.IsOk() {
		t.Fatal("FromPair err failed")
	}
}

func TestCollect(t *testing.T) {
	ok := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	v := ok.Must()
	if len(v) != 3 || v[2] != 3 {
		t.Fatal("Collect ok failed")
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("x"))})
	if bad.IsOk() {
		t.Fatal("Collect should return first error")
	}
}

// --- Slices ---

func TestMap(t *testing.T) {
	out := Map([]int{1, 2, 3}, func(v int) string { return strconv.Itoa(v * 2) })
	if len(out) != 3 || out[1] != "4" {
		t.Fatal("Map failed")
	}
}

func TestFilter(t *testing.T) {
	out := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(out) != 2 || out[0] != 2 {
		t.Fatal("Filter failed")
	}
}

func TestChunk(t *testing.T) {
	out := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(out) != 3 || len(out[2]) != 1 || out[2][0] != 5 {
		t.Fatal("Chunk failed")
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk with n=0 should be nil")
	}
}

func TestUnique(t *testing.T) {
	out := Unique([]string{"a", "b", "a", "c", "b"})
	if len(out) != 3 || out[0] != "a" || out[2] != "c" {
		t.Fatal("Unique failed")
	}
}

func TestUniqueBy(t *testing.T) {
	type doc struct{ id, name string }
	out := UniqueBy([]doc{{"1", "first"}, {"2", "x"}, {"1", "dup"}}, func(d doc) string { return d.id })
	if len(out) != 2 || out[0].name != "first" {
		t.Fatal("UniqueBy should keep the first element per key")
	}
}

// --- Pipeline ---

func TestThen(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	addOne := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) })

	composed := Then(double, addOne)
	r := composed(context.Background(), 5)
	if r.Must() != 11 {
		t.Fatal("Then failed")
	}
}

func TestThenShortCircuits(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	called := false
	second := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})

	r := Then(fail, second)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("Then should short-circuit")
	}
}

func TestPipeline(t *testing.T) {
	inc := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) })
	p := Pipeline(inc, inc, inc)
	if p(context.Background(), 0).Must() != 3 {
		t.Fatal("Pipeline failed")
	}
}

func TestMapStage(t *testing.T) {
	s := MapStage(func(v int) string { return strconv.Itoa(v) })
	r := s(context.Background(), 42)
	if r.Must() != "42" {
		t.Fatal("MapStage failed")
	}
}

func TestTapStage(t *testing.T) {
	var captured int
	s := TapStage(func(_ context.Context, v int) { captured = v })
	r := s(context.Background(), 7)
	if r.Must() != 7 || captured != 7 {
		t.Fatal("TapStage failed")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("test-stage", Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) }))
	r := s(context.Background(), 1)
	if r.Must() != 2 {
		t.Fatal("TracedStage failed")
	}

	e := TracedStage("err-stage", Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("x")) }))
	if e(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage error should propagate")
	}
}

// --- Retry ---

func TestRetrySuccess(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, Jitter: false}, func(_ context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("not yet"))
		}
		return Ok(42)
	})
	if r.Must() != 42 || attempts != 3 {
		t.Fatal("Retry should succeed on 3rd attempt")
	}
}

func TestRetryExhausted(t *testing.T) {
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, Jitter: false}, func(_ context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("Retry should fail after exhausting attempts")
	}
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	r := Retry(ctx, RetryOpts{MaxAttempts: 100, InitialWait: 10 * time.Millisecond, Jitter: false}, func(ctx context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("Retry should fail on context cancel")
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	s := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, Jitter: false},
		Stage[int, int](func(_ context.Context, v int) Result[int] {
			attempts++
			if attempts < 2 {
				return Err[int](errors.New("fail"))
			}
			return Ok(v * 2)
		}))
	r := s(context.Background(), 5)
	if r.Must() != 10 {
		t.Fatal("RetryStage failed")
	}
}
