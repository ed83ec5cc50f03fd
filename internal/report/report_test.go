package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/contentsquare/atomiccell/config"
	"github.com/contentsquare/atomiccell/internal/stress"
	"github.com/contentsquare/atomiccell/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SuppressOutput(true)
	code := m.Run()
	log.SuppressOutput(false)
	os.Exit(code)
}

func TestRedisReporter(t *testing.T) {
	s := miniredis.RunT(t)

	r, err := New(context.Background(), config.Report{
		Redis: &config.Redis{
			Addresses: []string{s.Addr()},
			KeyPrefix: "ci",
			TTL:       config.Duration(time.Hour),
		},
	})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Report(context.Background(), stress.Result{
		Scenario: "increment",
		Ops:      1200,
		Duration: 1500 * time.Millisecond,
		Final:    1200,
	}))

	assert.Equal(t, "passed", s.HGet("ci:increment", "status"))
	assert.Equal(t, "1200", s.HGet("ci:increment", "ops"))
	assert.Equal(t, "1500", s.HGet("ci:increment", "duration_ms"))
	assert.Equal(t, "1200", s.HGet("ci:increment", "final"))
	assert.Equal(t, "", s.HGet("ci:increment", "error"))
	assert.Equal(t, time.Hour, s.TTL("ci:increment"))

	violation := fmt.Errorf("%w: round 3 has 2 winners", stress.ErrViolation)
	require.NoError(t, r.Report(context.Background(), stress.Result{
		Scenario: "cas-race",
		Err:      violation,
	}))
	assert.Equal(t, "failed", s.HGet("ci:cas-race", "status"))
	assert.Equal(t, violation.Error(), s.HGet("ci:cas-race", "error"))
}

func TestRedisReporterWithoutTTL(t *testing.T) {
	s := miniredis.RunT(t)

	r, err := New(context.Background(), config.Report{
		Redis: &config.Redis{Addresses: []string{s.Addr()}},
	})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Report(context.Background(), stress.Result{Scenario: "wrap"}))
	assert.Equal(t, "passed", s.HGet("wrap", "status"))
	assert.Equal(t, time.Duration(0), s.TTL("wrap"))
}

func TestRedisUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := New(ctx, config.Report{
		Redis: &config.Redis{Addresses: []string{addr}},
	})
	assert.ErrorContains(t, err, "failed to reach redis")
}

func TestRedisReportError(t *testing.T) {
	s := miniredis.RunT(t)

	r, err := New(context.Background(), config.Report{
		Redis: &config.Redis{Addresses: []string{s.Addr()}},
	})
	require.NoError(t, err)
	defer r.Close()

	s.SetError("READONLY You can't write against a read only replica.")
	err = r.Report(context.Background(), stress.Result{Scenario: "update"})
	assert.ErrorContains(t, err, "failed to store result in redis")
}

type failingReporter struct {
	calls int
}

func (f *failingReporter) Report(context.Context, stress.Result) error {
	f.calls++
	return errors.New("sink down")
}

func (f *failingReporter) Close() error { return nil }

func TestMultiReporterReportsEverywhere(t *testing.T) {
	first := &failingReporter{}
	second := &failingReporter{}
	m := multiReporter{logReporter{}, first, second}

	var logged bytes.Buffer
	log.ErrorLogger.SetOutput(&logged)
	defer log.ErrorLogger.SetOutput(io.Discard)

	err := m.Report(context.Background(), stress.Result{Scenario: "increment"})
	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 2, strings.Count(logged.String(), "cannot report scenario \"increment\": sink down"))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls, "a failing reporter must not hide later ones")
	assert.NoError(t, m.Close())
}

func TestLogOnlyReporter(t *testing.T) {
	r, err := New(context.Background(), config.Report{})
	require.NoError(t, err)
	assert.NoError(t, r.Report(context.Background(), stress.Result{Scenario: "increment"}))
	assert.NoError(t, r.Close())
}
