package constants

// Redis Key 命名规范: app:{module}:{entity}:{unique_id}
const (
	AppPrefix = "app"

	MatchModulePrefix = "match"
	ParseModulePrefix = "parse"

	EntityLock = "lock"

	// KeyMatchPairLock 同一(候选人,岗位)对的计算互斥锁 (STRING)
	// 格式: app:match:lock:{candidateID}:{jobID}
	KeyMatchPairLock = AppPrefix + ":" + MatchModulePrefix + ":" + EntityLock + ":%d:%d"

	// KeyParseJobLock 解析任务互斥锁，防止重复投递被并发消费 (STRING)
	// 格式: app:parse:lock:{jobID}
	KeyParseJobLock = AppPrefix + ":" + ParseModulePrefix + ":" + EntityLock + ":%s"
)
