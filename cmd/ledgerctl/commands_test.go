package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentchain-properties/internal/reconcile"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
)

type stubLedger struct {
	count int64
	props map[int64]*ledger.Property
}

func (s *stubLedger) PropertyCount(context.Context) (int64, error) { return s.count, nil }

func (s *stubLedger) GetProperty(_ context.Context, id int64) (*ledger.Property, error) {
	if p, ok := s.props[id]; ok {
		return p, nil
	}
	return nil, errors.New("property does not exist")
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	a.out = out
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCountPrintsCounter(t *testing.T) {
	out, err := run(t, &app{ledger: &stubLedger{count: 42}}, "count")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestGetPrintsProperty(t *testing.T) {
	a := &app{ledger: &stubLedger{props: map[int64]*ledger.Property{
		7: {ID: 7, Owner: "0xabc", RentPerMonth: 1200, IsActive: true, IsAvailable: true},
	}}}

	out, err := run(t, a, "get", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"RentPerMonth": 1200`)
	assert.Contains(t, out, `"Owner": "0xabc"`)
}

func TestGetRejectsBadID(t *testing.T) {
	a := &app{ledger: &stubLedger{}}
	for _, arg := range []string{"0", "-3", "seven"} {
		_, err := run(t, a, "get", arg)
		assert.Error(t, err, arg)
	}

	_, err := run(t, a, "get")
	assert.Error(t, err, "missing argument")
}

func TestReconcileRunsJob(t *testing.T) {
	var ran []string
	a := &app{
		ledger: &stubLedger{},
		runJobs: func(_ context.Context, names ...string) error {
			ran = append(ran, names...)
			return nil
		},
	}

	out, err := run(t, a, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, []string{reconcile.JobName}, ran)
	assert.Contains(t, out, "reconciliation pass complete")
}

func TestReconcileSurfacesJobError(t *testing.T) {
	a := &app{runJobs: func(context.Context, ...string) error { return errors.New("cron lock held") }}
	_, err := run(t, a, "reconcile")
	assert.EqualError(t, err, "cron lock held")
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	var order []int
	a := &app{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	a.close()
	a.close()
	assert.Equal(t, []int{2, 1}, order)
}
