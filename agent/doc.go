// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package agent defines the contract between the HTTP layer and the research
agent.

# Overview

The HTTP handlers treat the agent as an opaque collaborator. An [Agent] either
returns a complete [Result] from Invoke, or an [EventStream] from Stream that
yields token events followed by a single done event.

Failures are never encoded as events. They are returned from Invoke, Stream
or EventStream.Recv as errors, preferably as *types.Error values so the
caller can classify them without inspecting error text.

# Core Types

  - [Agent]: Name / Invoke / Stream
  - [EventStream]: Recv / Close, io.EOF marks the end of the sequence
  - [Event]: token or done
  - [FailedStream]: adapts an error from Stream into a stream so callers
    have a single consumption path

Concrete agents live in sub-packages, see agent/research.
*/
package agent
