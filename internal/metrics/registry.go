// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import "github.com/prometheus/client_golang/prometheus"

// namespace prefixes every collector in this package, e.g.
// dchat_sessions_active, dchat_handshakes_initiated_total.
const namespace = "dchat"

// Registry is the process-wide collector registry every metric in this
// package registers against. A dedicated registry (rather than
// prometheus.DefaultRegisterer) keeps dchat's metrics free of the
// default Go runtime collectors unless StartServer's caller wants them.
var Registry = prometheus.NewRegistry()
