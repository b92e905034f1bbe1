// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	require := require.New(t)

	m, err := New(metric.NewRegistry())
	require.NoError(err)

	m.MarkOperation("submit", "ok")
	m.MarkOperation("submit", "conflict")
	m.MarkFinalized(true)
	m.MarkFinalized(false)
	m.SetActiveEntries(3)

	req := httptest.NewRequest("POST", "/rpc", nil)
	info := &rpc.RequestInfo{Method: "rating.Submit", Request: req}
	info.Request = m.InterceptRequest(info)
	_, ok := info.Request.Context().Value(requestStartKey).(time.Time)
	require.True(ok)

	info.Error = errors.New("boom")
	m.AfterRequest(info)
}

func TestNoopPassesRequestThrough(t *testing.T) {
	m := NewNoop()
	req := httptest.NewRequest("POST", "/rpc", nil)
	info := &rpc.RequestInfo{Method: "rating.Submit", Request: req}
	require.Same(t, req, m.InterceptRequest(info))
	m.AfterRequest(info)
	m.MarkOperation("delete", "ok")
}
