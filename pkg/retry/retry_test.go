package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("Do() calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatal("Do() expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("Do() calls = %d, want 3", calls)
	}
}

func TestDoIf_StopsOnNonRetryable(t *testing.T) {
	retryable := errors.New("retryable")
	fatal := errors.New("fatal")

	calls := 0
	err := DoIf(context.Background(), fastConfig(5), func(err error) bool {
		return errors.Is(err, retryable)
	}, func() error {
		calls++
		if calls == 1 {
			return retryable
		}
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("DoIf() error = %v, want fatal", err)
	}
	if calls != 2 {
		t.Errorf("DoIf() calls = %d, want 2", calls)
	}
}

func TestDoIf_ReturnsLastErrorUnwrapped(t *testing.T) {
	conflict := errors.New("conflict")

	err := DoIf(context.Background(), fastConfig(3), func(error) bool { return true }, func() error {
		return conflict
	})

	// Callers inspect the error to classify the failure; it must come
	// back as-is, not wrapped in retry bookkeeping.
	if !errors.Is(err, conflict) {
		t.Errorf("DoIf() error = %v, want the original conflict error", err)
	}
}

func TestCommitConfig_Defaults(t *testing.T) {
	cfg := CommitConfig(0)
	if cfg.MaxAttempts != 3 {
		t.Errorf("CommitConfig(0).MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	cfg = CommitConfig(7)
	if cfg.MaxAttempts != 7 {
		t.Errorf("CommitConfig(7).MaxAttempts = %d, want 7", cfg.MaxAttempts)
	}
}
