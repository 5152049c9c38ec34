// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package httpapi

// MetricsRecorder records boundary events. Implemented by
// observability.Metrics; a no-op recorder is used when none is supplied.
type MetricsRecorder interface {
	RecordExchange(provider, outcome string)
	RecordSessionValidation(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordExchange(_, _ string)       {}
func (nopMetrics) RecordSessionValidation(_ string) {}
