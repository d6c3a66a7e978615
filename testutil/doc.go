// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 Agents Backend 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - SSE 辅助: ParseSSEFrames 校验并解析 "data: <json>\n\n" 帧
  - 数据工具: MustJSON / MustParseJSON
  - 异步断言: AssertEventuallyTrue

# 子包

  - testutil/mocks: MockProvider（llm.Provider，含 MockTokenStream）与
    MockAgent（agent.Agent，含 ScriptedStream），均支持 Builder 模式与错误注入
  - testutil/fixtures: 预置 ChatResponse、研究笔记与研究结果样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponses("notes", "summary")
	res, err := research.New(provider, research.Config{}, zap.NewNop()).Invoke(ctx, in)
*/
package testutil
