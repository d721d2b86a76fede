package consts

const (
	DanceGraphName = "relay_flow_dance" // 舞蹈机会流水线图名称
	CodeGraphName  = "relay_flow_code"  // 代码流水线图名称
)

// 流水线名字
const (
	DancePipeline = "dance" // 舞蹈机会发现 → 舞者查找 → 申请起草
	CodePipeline  = "code"  // 代码编写 → 代码评审 → 代码重构
)

// Agent 名字
const (
	User                = "User"                // 用户，流水线第一条消息的发送者
	DiscoveryAgent      = "DiscoveryAgent"      // 机会发现者，负责搜索演出、艺术节、合作机会
	DancerFinderAgent   = "DancerFinderAgent"   // 舞者查找者，负责查找同风格的知名舞者
	ApplicationAgent    = "ApplicationAgent"    // 申请起草者，负责为最佳机会起草申请邮件
	CodeWriterAgent     = "CodeWriterAgent"     // 代码编写者，负责根据需求生成初版代码
	CodeReviewerAgent   = "CodeReviewerAgent"   // 代码评审者，负责给出评审意见
	CodeRefactorerAgent = "CodeRefactorerAgent" // 代码重构者，负责根据评审意见重构代码
	JudgeAgent          = "JudgeAgent"          // 评估者，负责对流水线产出打分
)

// GetAgentNameList 返回列表
func GetAgentNameList() []string {
	return []string{
		DiscoveryAgent,
		DancerFinderAgent,
		ApplicationAgent,
		CodeWriterAgent,
		CodeReviewerAgent,
		CodeRefactorerAgent,
		JudgeAgent,
	}
}

// 状态槽位名字
const (
	SlotMemory              = "memory.md"            // 长期记忆
	SlotOpportunities       = "opportunities_found"  // 发现的机会
	SlotDancers             = "dancers_found"        // 找到的舞者
	SlotApplications        = "applications_drafted" // 起草的申请
	SlotGeneratedCode       = "generated_code"       // 初版代码
	SlotReviewComments      = "review_comments"      // 评审意见
	SlotRefactoredCode      = "refactored_code"      // 重构后的代码
	DefaultSlotExtension    = ".txt"                 // 槽位默认扩展名
	DefaultMaxContextLength = 5000                   // 上下文压缩默认长度
	DefaultReportPreview    = 500                    // 结果预览默认长度
	JudgeContextLength      = 2000                   // 评估时每个槽位的压缩长度
)

// 图内部节点
const (
	NodeLoad   = "load"   // 加载用户请求
	NodeReport = "report" // 汇总结果
)
