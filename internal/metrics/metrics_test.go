// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/decoydocs", "200"))

	RecordAPIRequest("GET", "/api/decoydocs", "200", 15*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/decoydocs", "200"))
	if after != before+1 {
		t.Errorf("api_requests_total = %v, want %v", after, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := getGaugeValue(APIActiveRequests)

	TrackActiveRequest(true)
	if got := getGaugeValue(APIActiveRequests); got != before+1 {
		t.Errorf("active requests after inc = %v, want %v", got, before+1)
	}

	TrackActiveRequest(false)
	if got := getGaugeValue(APIActiveRequests); got != before {
		t.Errorf("active requests after dec = %v, want %v", got, before)
	}
}

func TestRecordAlert(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"written", nil, "written"},
		{"failed", errors.New("disk full"), "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(DetectionAlertsTotal.WithLabelValues(tt.outcome))
			RecordAlert(tt.err)
			after := testutil.ToFloat64(DetectionAlertsTotal.WithLabelValues(tt.outcome))
			if after != before+1 {
				t.Errorf("ids_alerts_total{outcome=%q} = %v, want %v", tt.outcome, after, before+1)
			}
		})
	}
}

func TestRecordSuspicionMark(t *testing.T) {
	before := testutil.ToFloat64(SuspicionMarksTotal)

	RecordSuspicionMark(7)

	if got := testutil.ToFloat64(SuspicionMarksTotal); got != before+1 {
		t.Errorf("ids_suspicion_marks_total = %v, want %v", got, before+1)
	}
	if got := getGaugeValue(SuspiciousIdentities); got != 7 {
		t.Errorf("ids_suspicious_identities = %v, want 7", got)
	}
}

func TestRecordInventoryCall(t *testing.T) {
	beforeOK := testutil.ToFloat64(InventoryCallsTotal.WithLabelValues("register", "success"))
	beforeFail := testutil.ToFloat64(InventoryCallsTotal.WithLabelValues("register", "failure"))

	RecordInventoryCall("register", nil)
	RecordInventoryCall("register", errors.New("503"))

	if got := testutil.ToFloat64(InventoryCallsTotal.WithLabelValues("register", "success")); got != beforeOK+1 {
		t.Errorf("success calls = %v, want %v", got, beforeOK+1)
	}
	if got := testutil.ToFloat64(InventoryCallsTotal.WithLabelValues("register", "failure")); got != beforeFail+1 {
		t.Errorf("failure calls = %v, want %v", got, beforeFail+1)
	}
}

func TestRecordDecoyDecision(t *testing.T) {
	before := testutil.ToFloat64(DecoyDecisionsTotal.WithLabelValues("decoy", "documents"))

	RecordDecoyDecision("decoy", "documents")

	if got := testutil.ToFloat64(DecoyDecisionsTotal.WithLabelValues("decoy", "documents")); got != before+1 {
		t.Errorf("decoy_decisions_total = %v, want %v", got, before+1)
	}
}

func TestRecordForceDecoyPush(t *testing.T) {
	before := testutil.ToFloat64(ForceDecoyPushesTotal.WithLabelValues("dropped"))

	RecordForceDecoyPush(false)

	if got := testutil.ToFloat64(ForceDecoyPushesTotal.WithLabelValues("dropped")); got != before+1 {
		t.Errorf("dropped pushes = %v, want %v", got, before+1)
	}
}
