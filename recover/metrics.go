// Copyright 2024 The exodus Authors
// This file is part of the exodus library.
//
// The exodus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The exodus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the exodus library. If not, see <http://www.gnu.org/licenses/>.

package recover

import "github.com/rcrowley/go-metrics"

var (
	lastWatchedBlockGauge   = metrics.NewRegisteredGauge("recover/events/lastwatched", nil)
	committedEventsGauge    = metrics.NewRegisteredGauge("recover/events/committed", nil)
	verifiedEventsGauge     = metrics.NewRegisteredGauge("recover/events/verified", nil)
	appliedBlockGauge       = metrics.NewRegisteredGauge("recover/tree/appliedblock", nil)
	totalVerifiedGauge      = metrics.NewRegisteredGauge("recover/contract/totalverified", nil)
	blockApplyTimeGauge     = metrics.NewRegisteredGauge("recover/tree/applytime", nil)
	storeBlocksRetryCounter = metrics.NewRegisteredCounter("recover/storage/retries", nil)
)
