// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package research implements the research agent behind /api/v1/chat/research.

A run has two LLM steps. The research step asks the provider for a numbered
list of research notes about the query. The summary step turns those notes
into the final answer. Invoke returns both; Stream runs the research step on
the first Recv and then forwards the summary tokens, ending with a done event.

An empty or whitespace-only query fails with a validation-kind *types.Error.
Provider failures are returned wrapped with the failing step's name, keeping
their *types.Error kind intact. Each run and step is traced with
OpenTelemetry spans.
*/
package research
