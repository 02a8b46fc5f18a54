package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Multiplier: 2}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"http 429", &StatusError{StatusCode: 429}, true},
		{"http 502", &StatusError{StatusCode: 502}, true},
		{"http 503", &StatusError{StatusCode: 503}, true},
		{"http 404", &StatusError{StatusCode: 404}, false},
		{"http 401", &StatusError{StatusCode: 401}, false},
		{"regular error", errors.New("something"), false},
		{"timeout", &net.DNSError{IsTimeout: true}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryDoRetryThenSuccess(t *testing.T) {
	calls := 0
	got, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &StatusError{StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryDoExhausted(t *testing.T) {
	rc := fastRetry
	rc.MaxRetries = 2
	calls := 0
	_, err := RetryDo(context.Background(), rc, func() (string, error) {
		calls++
		return "", &StatusError{StatusCode: 502}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial + 2 retries")
}

func TestRetryDoNonRetryable(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetry, func() (string, error) {
		calls++
		return "", errors.New("permanent error")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryDo(ctx, fastRetry, func() (string, error) {
		return "", &StatusError{StatusCode: 503}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryHTTP(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantCode  int // 0 = success
	}{
		{"ok first try", []int{200}, 1, 0},
		{"503 then ok", []int{503, 503, 200}, 3, 0},
		{"404 not retried", []int{404}, 1, 404},
		{"429 exhausted", []int{429, 429, 429, 429}, 4, 429},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				code := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.WriteHeader(code)
				_, _ = w.Write([]byte("body"))
			}))
			defer srv.Close()

			resp, err := RetryHTTP(context.Background(), fastRetry, func() (*http.Response, error) {
				return srv.Client().Get(srv.URL)
			})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantCode == 0 {
				require.NoError(t, err)
				resp.Body.Close()
				return
			}
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantCode, se.StatusCode)
			assert.Equal(t, "body", se.Body)
		})
	}
}

func TestCheckStatus_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Retry-After", "7")
	rec.WriteHeader(http.StatusTooManyRequests)
	err := CheckStatus(rec.Result())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 7*time.Second, se.RetryAfter)
}
